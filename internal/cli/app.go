package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/andywolf/concierge/internal/agent"
	"github.com/andywolf/concierge/internal/cloud/gcp"
	"github.com/andywolf/concierge/internal/config"
	"github.com/andywolf/concierge/internal/events"
	"github.com/andywolf/concierge/internal/llm"
	"github.com/andywolf/concierge/internal/longterm"
	"github.com/andywolf/concierge/internal/memory"
	"github.com/andywolf/concierge/internal/observability"
	"github.com/andywolf/concierge/internal/security"
	"github.com/andywolf/concierge/internal/tools"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/spf13/viper"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	agent    *agent.Agent
	store    *longterm.Store
	logger   *gcp.CloudLogger
	tracer   observability.Tracer
	recorder *events.Recorder
	scrubber *security.Scrubber
}

// appOptions adjusts how newApp wires things for a particular command.
type appOptions struct {
	// quiet discards local log output unless --verbose is set.
	quiet bool
}

// newApp resolves secrets and builds the agent with its collaborators.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, scrubber: security.NewScrubber()}

	if err := a.resolveSecrets(ctx); err != nil {
		return nil, err
	}

	if err := a.initLogger(ctx, opts); err != nil {
		return nil, err
	}
	std := a.logger.StdLogger()

	a.tracer = &observability.NoOpTracer{}
	lf := observability.LangfuseConfig{
		PublicKey: cfg.Langfuse.PublicKey,
		SecretKey: cfg.Langfuse.SecretKey,
		BaseURL:   cfg.Langfuse.BaseURL,
		Scrub:     a.scrubber.Scrub,
	}
	if lf.Enabled() {
		a.tracer = observability.NewLangfuseTracer(lf, std)
	}

	var sink events.Sink
	if cfg.Events.Enabled {
		fs, err := events.NewFileSink(cfg.Events.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		sink = fs
	}
	a.recorder = events.NewRecorder(sink, a.scrubber.Scrub, std)

	if cfg.LongTerm.Enabled {
		store, err := longterm.Open(cfg.LongTerm.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open long-term store: %w", err)
		}
		a.store = store
	}

	extractor, err := a.extractor()
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := a.registry(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	sessions := memory.NewSessions(memory.Config{MaxItems: cfg.Memory.MaxItems, MaxTokens: cfg.Memory.MaxTokens})
	sessions.SetMaxSessions(cfg.Memory.MaxSessions)

	opt := agent.Options{
		Sessions:            sessions,
		Extractor:           extractor,
		Tools:               registry,
		PersistInteractions: cfg.Agent.PersistInteractions,
		Tracer:              a.tracer,
		Recorder:            a.recorder,
		CloudLogger:         a.logger,
		Limiter:             security.NewRateLimiter(cfg.Agent.RateLimit, time.Minute),
		MaxIterations:       cfg.Agent.MaxIterations,
		ModelName:           cfg.LLM.Model,
		ToolTimeout:         cfg.ToolTimeout(),
	}
	if a.store != nil {
		opt.Store = a.store
	}
	a.agent, err = agent.New(opt)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// resolveSecrets fills empty credentials from Secret Manager and registers
// every credential with the scrubber.
func (a *app) resolveSecrets(ctx context.Context) error {
	cfg := a.cfg
	refs := []gcp.SecretRef{
		{Name: "llm.api_key", Path: cfg.LLM.APIKeySecret, Dest: &cfg.LLM.APIKey},
		{Name: "tools.search_api_key", Path: cfg.Tools.SearchAPIKeySecret, Dest: &cfg.Tools.SearchAPIKey},
		{Name: "langfuse.secret_key", Path: cfg.Langfuse.SecretKeySecret, Dest: &cfg.Langfuse.SecretKey},
	}

	if gcp.NeedsSecrets(refs) {
		projectID := cfg.Logging.Project
		if projectID == "" {
			var err error
			if projectID, err = gcp.ProjectID(ctx); err != nil {
				return fmt.Errorf("failed to determine GCP project for secrets: %w", err)
			}
		}
		client, err := gcp.NewSecretManagerClient(ctx, projectID)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		if _, err := gcp.ResolveSecrets(ctx, client, refs); err != nil {
			return err
		}
	}

	for _, v := range []string{cfg.LLM.APIKey, cfg.Tools.SearchAPIKey, cfg.Langfuse.SecretKey} {
		a.scrubber.AddLiteral(v)
	}
	return nil
}

func (a *app) initLogger(ctx context.Context, opts appOptions) error {
	var extra []gcp.CloudLoggerOption
	extra = append(extra, gcp.WithScrubber(a.scrubber))
	if opts.quiet && !verbose() {
		extra = append(extra, gcp.WithWriter(io.Discard))
	}
	logger, err := gcp.NewLogger(ctx, gcp.LoggerConfig{
		Backend:   a.cfg.Logging.Backend,
		ProjectID: a.cfg.Logging.Project,
		LogID:     a.cfg.Logging.LogID,
	}, extra...)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) extractor() (llm.Extractor, error) {
	if a.cfg.LLM.Offline {
		return llm.StaticExtractor(a.cfg.StaticRequirements()), nil
	}
	if err := a.cfg.ValidateForOnline(); err != nil {
		return nil, err
	}
	return llm.NewModelExtractor(a.provider()), nil
}

// provider builds the configured model provider. It does not check for an
// API key.
func (a *app) provider() model.Provider {
	return llm.NewProvider(llm.ProviderConfig{
		Provider:  a.cfg.LLM.Provider,
		APIKey:    a.cfg.LLM.APIKey,
		BaseURL:   a.cfg.LLM.BaseURL,
		Model:     a.cfg.LLM.Model,
		MaxTokens: a.cfg.LLM.MaxTokens,
	})
}

func (a *app) registry(ctx context.Context) (*tools.Registry, error) {
	catalog, err := tools.LoadCardCatalog()
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: a.cfg.ToolTimeout()}

	registry := tools.NewRegistry(
		tools.NewGeocoder(a.cfg.Tools.GeocodeBaseURL, client),
		tools.NewWeather(a.cfg.Tools.WeatherBaseURL, client),
		tools.NewSearch(a.cfg.Tools.SearchAPIKey, a.cfg.Tools.SearchDepth, a.cfg.Tools.SearchBaseURL, client),
		tools.NewCardLookup(catalog),
		tools.NewCardRecommender(catalog),
		tools.NewFX(),
	)
	if a.store != nil {
		if err := tools.SeedCatalog(ctx, a.store, catalog); err != nil {
			return nil, fmt.Errorf("failed to seed knowledge base: %w", err)
		}
		registry.Register(tools.NewKnowledge(a.store, a.cfg.LongTerm.TopK))
	}
	return registry, nil
}

// Close flushes telemetry and releases the store. It is safe on a partially
// built app.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.tracer != nil {
		if err := a.tracer.Stop(ctx); err != nil {
			a.warn("failed to flush traces: %v", err)
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.warn("failed to close event log: %v", err)
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func (a *app) warn(format string, args ...any) {
	if a.logger != nil {
		a.logger.Warningf(format, args...)
		return
	}
	log.Printf("Warning: "+format, args...)
}

// loadApp loads the config and builds the app in one step.
func loadApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(ctx, cfg, opts)
}

func verbose() bool {
	return viper.GetBool("verbose")
}
