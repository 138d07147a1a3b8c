package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/supportbot/engine/domain"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ============================================================================
// Loader
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "localhost:6334", cfg.Qdrant.Addr)
	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, 0.3, cfg.Generator.Temperature)
	assert.Equal(t, 800, cfg.Generator.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, Tunables{MaxSearchResults: 5, SimilarityThreshold: 0.7, Model: "gpt-4o-mini"}, cfg.Tunables())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "supportbot.yaml", `
server:
  port: 9090
qdrant:
  collection: kb
generator:
  provider: Ollama
  timeout: 5s
rag:
  max_search_results: 8
  similarity_threshold: 0.5
nats:
  url: nats://localhost:4222
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "kb", cfg.Qdrant.Collection)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, 5*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, 8, cfg.RAG.MaxSearchResults)
	assert.Equal(t, 0.5, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "supportbot.yaml", "server:\n  port: 9090\n")
	t.Setenv("SUPPORTBOT_SERVER_PORT", "7070")
	t.Setenv("SUPPORTBOT_RAG_SIMILARITY_THRESHOLD", "0.25")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 0.25, cfg.RAG.SimilarityThreshold)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-plain", cfg.Generator.APIKey)

	t.Setenv("SUPPORTBOT_GENERATOR_API_KEY", "sk-prefixed")
	cfg, err = NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.Generator.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"provider", "generator:\n  provider: bard\n", "generator.provider"},
		{"results", "rag:\n  max_search_results: 21\n", "max_search_results"},
		{"threshold", "rag:\n  similarity_threshold: 1.5\n", "similarity_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeFile(t, "c.yaml", tt.body)).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := NewLoader(writeFile(t, "c.yaml", "server: [unterminated\n")).Load()
	assert.Error(t, err)
}

func TestLoadDotenv(t *testing.T) {
	assert.NoError(t, LoadDotenv(""))
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), ".env")))

	t.Setenv("SUPPORTBOT_QDRANT_COLLECTION", "")
	require.NoError(t, os.Unsetenv("SUPPORTBOT_QDRANT_COLLECTION"))
	path := writeFile(t, ".env", "SUPPORTBOT_QDRANT_COLLECTION=from-dotenv\n")
	require.NoError(t, LoadDotenv(path))

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Qdrant.Collection)
}

// ============================================================================
// Store
// ============================================================================

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Tunables{MaxSearchResults: 5, SimilarityThreshold: 0.7, Model: "gpt-4o-mini"})
	require.NoError(t, err)
	return s
}

func TestNewStore_RejectsInvalid(t *testing.T) {
	_, err := NewStore(Tunables{MaxSearchResults: 0, SimilarityThreshold: 0.7, Model: "m"})
	assert.True(t, domain.IsValidation(err))
}

func TestStore_Update(t *testing.T) {
	tests := []struct {
		name    string
		patch   Patch
		want    Tunables
		wantErr bool
	}{
		{"partial results", Patch{MaxSearchResults: ptr(10)}, Tunables{10, 0.7, "gpt-4o-mini"}, false},
		{"all fields", Patch{ptr(1), ptr(0.0), ptr("gpt-4o")}, Tunables{1, 0, "gpt-4o"}, false},
		{"upper bounds", Patch{MaxSearchResults: ptr(20), SimilarityThreshold: ptr(1.0)}, Tunables{20, 1, "gpt-4o-mini"}, false},
		{"too many", Patch{MaxSearchResults: ptr(21)}, Tunables{5, 0.7, "gpt-4o-mini"}, true},
		{"too few", Patch{MaxSearchResults: ptr(0)}, Tunables{5, 0.7, "gpt-4o-mini"}, true},
		{"negative threshold", Patch{SimilarityThreshold: ptr(-0.1)}, Tunables{5, 0.7, "gpt-4o-mini"}, true},
		{"empty model", Patch{Model: ptr("")}, Tunables{5, 0.7, "gpt-4o-mini"}, true},
		{"one bad field rejects all", Patch{MaxSearchResults: ptr(3), SimilarityThreshold: ptr(2.0)}, Tunables{5, 0.7, "gpt-4o-mini"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			got, err := s.Update(tt.patch)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSetting)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.Get())
		})
	}
}

func TestStore_Accessors(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(Patch{MaxSearchResults: ptr(7), SimilarityThreshold: ptr(0.4), Model: ptr("gpt-4.1")})
	require.NoError(t, err)

	n, minScore := s.SearchDefaults()
	assert.Equal(t, 7, n)
	assert.Equal(t, 0.4, minScore)
	assert.Equal(t, "gpt-4.1", s.Model())
}

func TestStore_SnapshotUnaffectedByUpdate(t *testing.T) {
	s := newTestStore(t)
	before := s.Get()
	_, err := s.Update(Patch{MaxSearchResults: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, 5, before.MaxSearchResults)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Update(Patch{MaxSearchResults: ptr(i), SimilarityThreshold: ptr(float64(i) / 20)})
		}()
		go func() {
			defer wg.Done()
			n, minScore := s.SearchDefaults()
			assert.True(t, n >= 1 && n <= 20)
			assert.True(t, minScore >= 0 && minScore <= 1)
		}()
	}
	wg.Wait()
	assert.NoError(t, s.Get().Validate())
}

// ============================================================================
// Watch
// ============================================================================

func TestApply_ReloadsTunables(t *testing.T) {
	path := writeFile(t, "c.yaml", "rag:\n  max_search_results: 5\n")
	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)
	s := newTestStore(t)

	require.NoError(t, os.WriteFile(path, []byte("rag:\n  max_search_results: 9\n  similarity_threshold: 0.55\n"), 0o600))
	require.NoError(t, l.v.ReadInConfig())

	var observed []error
	l.apply(fsnotify.Event{Name: path, Op: fsnotify.Write}, s, nil, func(err error) { observed = append(observed, err) })
	assert.Equal(t, Tunables{9, 0.55, "gpt-4o-mini"}, s.Get())
	assert.Equal(t, []error{nil}, observed)

	require.NoError(t, os.WriteFile(path, []byte("rag:\n  max_search_results: 99\n"), 0o600))
	require.NoError(t, l.v.ReadInConfig())
	l.apply(fsnotify.Event{Name: path, Op: fsnotify.Write}, s, nil, func(err error) { observed = append(observed, err) })
	assert.Equal(t, 9, s.Get().MaxSearchResults, "invalid reload keeps the previous value")
	require.Len(t, observed, 2)
	assert.True(t, errors.Is(observed[1], domain.ErrInvalidSetting))
}

func TestWatch_NoFileIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { NewLoader("").Watch(newTestStore(t), nil, nil) })
}
