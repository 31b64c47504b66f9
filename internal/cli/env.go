package cli

import (
	"strings"

	"github.com/spf13/viper"
)

// envKeyReplacer maps llm.api_key to CONCIERGE_LLM_API_KEY.
var envKeyReplacer = strings.NewReplacer(".", "_")

// envKeys are bound explicitly because viper.Unmarshal only sees
// environment values for keys it already knows about.
var envKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.api_key_secret",
	"llm.base_url",
	"tools.search_api_key",
	"tools.search_api_key_secret",
	"tools.timeout",
	"logging.backend",
	"logging.project",
	"langfuse.public_key",
	"langfuse.secret_key",
	"langfuse.secret_key_secret",
	"langfuse.base_url",
	"longterm.enabled",
	"longterm.db_path",
	"events.enabled",
	"agent.rate_limit",
}

func bindEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}
