package gcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockSecretFetcher implements SecretFetcher for testing
type mockSecretFetcher struct {
	secrets map[string]string
	calls   []string
}

func (m *mockSecretFetcher) FetchSecret(_ context.Context, secretPath string) (string, error) {
	m.calls = append(m.calls, secretPath)
	if v, ok := m.secrets[secretPath]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func (m *mockSecretFetcher) Close() error { return nil }

func TestNormalizeSecretPath(t *testing.T) {
	tests := []struct {
		name       string
		secretPath string
		want       string
	}{
		{
			name:       "full path with version",
			secretPath: "projects/my-project/secrets/my-secret/versions/1",
			want:       "projects/my-project/secrets/my-secret/versions/1",
		},
		{
			name:       "full path without version",
			secretPath: "projects/my-project/secrets/my-secret",
			want:       "projects/my-project/secrets/my-secret/versions/latest",
		},
		{
			name:       "secret name only",
			secretPath: "tavily-api-key",
			want:       "projects/trip-prod/secrets/tavily-api-key/versions/latest",
		},
		{
			name:       "secret name with path prefix",
			secretPath: "path/to/tavily-api-key",
			want:       "projects/trip-prod/secrets/tavily-api-key/versions/latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeSecretPath("trip-prod", tt.secretPath)
			if got != tt.want {
				t.Errorf("normalizeSecretPath(%q) = %q, want %q", tt.secretPath, got, tt.want)
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	fetcher := &mockSecretFetcher{secrets: map[string]string{
		"llm-key":    "sk-ant-from-secret-manager",
		"tavily-key": "tvly-from-secret-manager",
	}}

	llmKey := ""
	tavilyKey := "tvly-from-env"
	langfuseKey := ""
	refs := []SecretRef{
		{Name: "llm.api_key", Path: "llm-key", Dest: &llmKey},
		{Name: "tools.tavily_api_key", Path: "tavily-key", Dest: &tavilyKey},
		{Name: "langfuse.secret_key", Path: "", Dest: &langfuseKey},
	}

	if !NeedsSecrets(refs) {
		t.Fatal("expected NeedsSecrets to be true")
	}

	resolved, err := ResolveSecrets(context.Background(), fetcher, refs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llmKey != "sk-ant-from-secret-manager" {
		t.Errorf("expected llm key from secret manager, got %q", llmKey)
	}
	if tavilyKey != "tvly-from-env" {
		t.Errorf("expected env value to win, got %q", tavilyKey)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "llm-key" {
		t.Errorf("expected one fetch for llm-key, got %v", fetcher.calls)
	}
	if len(resolved) != 1 {
		t.Errorf("expected 1 resolved value, got %d", len(resolved))
	}
	if NeedsSecrets(refs) {
		t.Error("expected NeedsSecrets to be false after resolving")
	}
}

func TestResolveSecrets_Error(t *testing.T) {
	fetcher := &mockSecretFetcher{}
	dest := ""
	_, err := ResolveSecrets(context.Background(), fetcher, []SecretRef{
		{Name: "llm.api_key", Path: "missing", Dest: &dest},
	})
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	if dest != "" {
		t.Errorf("expected destination to stay empty, got %q", dest)
	}
}

func TestProjectID_FromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "env-project")
	got, err := ProjectID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "env-project" {
		t.Errorf("expected env-project, got %q", got)
	}
}

func TestProjectID_FromMetadata(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			http.Error(w, "missing header", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("meta-project\n"))
	}))
	defer server.Close()

	orig := metadataURL
	metadataURL = server.URL
	defer func() { metadataURL = orig }()

	got, err := ProjectID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "meta-project" {
		t.Errorf("expected meta-project, got %q", got)
	}
}

func TestSecretFetcherInterface(t *testing.T) {
	var _ SecretFetcher = (*SecretManagerClient)(nil)
	var _ SecretFetcher = (*mockSecretFetcher)(nil)
}

func TestSecretManagerClient_Close_Nil(t *testing.T) {
	client := &SecretManagerClient{client: nil}
	if err := client.Close(); err != nil {
		t.Errorf("Close() with nil client unexpected error: %v", err)
	}
}
