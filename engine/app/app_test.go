package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/supportbot/engine/search"
	"github.com/supportdesk/supportbot/pkg/config"
	"github.com/supportdesk/supportbot/pkg/llm"
	"github.com/supportdesk/supportbot/pkg/ollama"
)

type fakeChecker struct {
	failures int
	exists   bool
	calls    int
}

func (f *fakeChecker) Exists(context.Context) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, errors.New("connection refused")
	}
	return f.exists, nil
}

func (f *fakeChecker) Collection() string { return "support_knowledge" }

func fastStartup(t *testing.T) {
	t.Helper()
	saved := StartupRetry
	StartupRetry.InitialWait = time.Millisecond
	StartupRetry.MaxWait = time.Millisecond
	t.Cleanup(func() { StartupRetry = saved })
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWaitForIndex(t *testing.T) {
	fastStartup(t)

	tests := []struct {
		name    string
		checker *fakeChecker
		wantErr string
		calls   int
	}{
		{"ready", &fakeChecker{exists: true}, "", 1},
		{"recovers", &fakeChecker{failures: 2, exists: true}, "", 3},
		{"missing collection", &fakeChecker{exists: false}, "does not exist", 1},
		{"never reachable", &fakeChecker{failures: 100}, "connection refused", StartupRetry.MaxAttempts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WaitForIndex(context.Background(), tt.checker, quiet())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Equal(t, tt.calls, tt.checker.calls)
		})
	}
}

func testConfig(t *testing.T) (*config.Config, *config.Store) {
	t.Helper()
	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)
	store, err := config.NewStore(cfg.Tunables())
	require.NoError(t, err)
	return cfg, store
}

func TestNewGenerator(t *testing.T) {
	cfg, store := testConfig(t)

	cfg.Generator.APIKey = ""
	_, err := NewGenerator(cfg, store)
	assert.Error(t, err)

	cfg.Generator.APIKey = "sk-test"
	g, err := NewGenerator(cfg, store)
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAI{}, g)

	cfg.Generator.Provider = "ollama"
	g, err = NewGenerator(cfg, store)
	require.NoError(t, err)
	assert.IsType(t, &ollama.ChatClient{}, g)

	cfg.Generator.Provider = "bard"
	_, err = NewGenerator(cfg, store)
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	cfg, _ := testConfig(t)

	cfg.Ollama.EmbedCacheSize = 0
	e, err := NewEmbedder(cfg.Ollama)
	require.NoError(t, err)
	assert.IsType(t, &ollama.EmbedClient{}, e)

	cfg.Ollama.EmbedCacheSize = 16
	e, err = NewEmbedder(cfg.Ollama)
	require.NoError(t, err)
	assert.IsType(t, &search.CachedEmbedder{}, e)
}

func TestBuild_GeneratorFailureStopsEarly(t *testing.T) {
	cfg, store := testConfig(t)
	cfg.Generator.APIKey = ""

	stack, err := Build(context.Background(), cfg, store, nil, quiet())
	assert.Error(t, err)
	assert.Nil(t, stack)
	assert.NoError(t, stack.Close())
}

func TestAttachService(t *testing.T) {
	cfg, store := testConfig(t)
	cfg.Generator.Provider = "ollama"
	gen, err := NewGenerator(cfg, store)
	require.NoError(t, err)

	st := &Stack{}
	st.AttachService(cfg, gen, nil, quiet())
	assert.NotNil(t, st.Service)
	assert.Same(t, gen, st.Generator)
}
