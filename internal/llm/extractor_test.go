package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cexll/agentsdk-go/pkg/model"
)

type fakeModel struct {
	reply string
	err   error
	got   model.Request
}

func (f *fakeModel) Complete(_ context.Context, req model.Request) (*model.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Message: model.Message{Role: "assistant", Content: f.reply}}, nil
}

func (f *fakeModel) CompleteStream(ctx context.Context, req model.Request, cb model.StreamHandler) error {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return err
	}
	return cb(model.StreamResult{Response: resp, Final: true})
}

func providerFor(m model.Model) model.Provider {
	return model.ProviderFunc(func(context.Context) (model.Model, error) { return m, nil })
}

func TestParseRequirements(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "bare object",
			reply: `{"destination":"Paris","dates":"2026-06-01 to 2026-06-08","card":"BankGold"}`,
			want:  map[string]any{"destination": "Paris", "dates": "2026-06-01 to 2026-06-08", "card": "BankGold"},
		},
		{
			name:  "fenced and multiline",
			reply: "Sure!\n```json\n{\n  \"destination\": \"Rome\",\n  \"card\": \"Unknown\"\n}\n```",
			want:  map[string]any{"destination": "Rome", "card": "Unknown"},
		},
		{name: "no json", reply: "I cannot help with that.", wantErr: true},
		{name: "broken json", reply: "{destination: Paris}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequirements(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestModelExtractor(t *testing.T) {
	m := &fakeModel{reply: `{"destination":"Tokyo","dates":"2026-01-01","card":"BankPlatinum"}`}
	got, err := NewModelExtractor(providerFor(m)).Extract(context.Background(), "Tokyo in January on my BankPlatinum")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got["destination"] != "Tokyo" || got["card"] != "BankPlatinum" {
		t.Errorf("unexpected requirements: %v", got)
	}
	if len(m.got.Messages) != 1 || m.got.Messages[0].Role != "user" {
		t.Fatalf("unexpected request: %+v", m.got)
	}
	if m.got.System == "" {
		t.Error("expected a system prompt")
	}
}

func TestExtractRequirements_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		ex   Extractor
	}{
		{"nil extractor", nil},
		{"model error", NewModelExtractor(providerFor(&fakeModel{err: errors.New("rate limited")}))},
		{"no json", NewModelExtractor(providerFor(&fakeModel{reply: "sorry"}))},
		{"no provider", NewModelExtractor(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRequirements(context.Background(), tt.ex, "anything")
			if err == nil {
				t.Error("expected the underlying error to be reported")
			}
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty mapping, got %v", got)
			}
		})
	}
}

func TestStaticExtractor(t *testing.T) {
	s := StaticExtractor{"destination": "Paris"}
	got, err := ExtractRequirements(context.Background(), s, "ignored")
	if err != nil || got["destination"] != "Paris" {
		t.Fatalf("unexpected result: %v, %v", got, err)
	}
	got["destination"] = "Rome"
	if s["destination"] != "Paris" {
		t.Error("expected StaticExtractor to return a copy")
	}
}

func TestNewProvider(t *testing.T) {
	if _, ok := NewProvider(ProviderConfig{Provider: "OpenAI"}).(*model.OpenAIProvider); !ok {
		t.Error("expected OpenAI provider")
	}
	if _, ok := NewProvider(ProviderConfig{}).(*model.AnthropicProvider); !ok {
		t.Error("expected Anthropic provider by default")
	}
}
