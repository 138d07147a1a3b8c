package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/engine/rag"
	"github.com/supportdesk/supportbot/pkg/config"
	"github.com/supportdesk/supportbot/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Error details returned to clients.
const (
	detailUnavailable   = "サポートエージェントが初期化されていません"
	detailInvalidBody   = "リクエストの形式が正しくありません"
	detailEmptyQuestion = "質問が空です"
	detailTooLong       = "質問が長すぎます（1000文字以内）"
	detailBatchTooLarge = "一度に処理できる質問は最大10件です"
	detailInvalidConfig = "設定値が範囲外です"
	detailInternal      = "内部サーバーエラーが発生しました"
)

// answerer is the part of rag.Service the handlers use.
type answerer interface {
	Answer(ctx context.Context, q domain.Question) (*domain.AnswerResponse, error)
	AnswerBatch(ctx context.Context, questions []string) ([]domain.AnswerResponse, error)
	Status(ctx context.Context) rag.SystemStatus
}

type server struct {
	svc     answerer // nil when initialization failed
	store   *config.Store
	metrics *metrics.Registry
	logger  *slog.Logger
	started time.Time
	now     func() time.Time
}

func newServer(svc answerer, store *config.Store, reg *metrics.Registry, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{svc: svc, store: store, metrics: reg, logger: logger, started: time.Now(), now: time.Now}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /ask", s.requireService(s.handleAsk))
	mux.HandleFunc("POST /batch-ask", s.requireService(s.handleBatchAsk))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.requireService(s.handleStats))
	mux.HandleFunc("POST /config", s.requireService(s.handleConfig))
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorBody{Detail: detail})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return false
	}
	return true
}

// validationDetail maps a validation error to its client-facing message.
func validationDetail(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion), errors.Is(err, domain.ErrEmptyBatch):
		return detailEmptyQuestion
	case errors.Is(err, domain.ErrQuestionTooLong):
		return detailTooLong
	case errors.Is(err, domain.ErrBatchTooLarge):
		return detailBatchTooLarge
	case errors.Is(err, domain.ErrInvalidSetting):
		return detailInvalidConfig
	default:
		return err.Error()
	}
}

func (s *server) fail(w http.ResponseWriter, op string, err error) {
	if domain.IsValidation(err) {
		writeError(w, http.StatusBadRequest, validationDetail(err))
		return
	}
	s.logger.Error(op+" failed", "err", err)
	writeError(w, http.StatusInternalServerError, detailInternal)
}

func (s *server) requireService(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.svc == nil {
			writeError(w, http.StatusServiceUnavailable, detailUnavailable)
			return
		}
		h(w, r)
	}
}

// --- Handlers ---

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Support Bot API",
		"version": version,
		"status":  "running",
	})
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if !decode(w, r, &q) {
		return
	}
	resp, err := s.svc.Answer(r.Context(), q)
	if err != nil {
		s.fail(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleBatchAsk(w http.ResponseWriter, r *http.Request) {
	var questions []string
	if !decode(w, r, &questions) {
		return
	}
	resp, err := s.svc.AnswerBatch(r.Context(), questions)
	if err != nil {
		s.fail(w, "batch ask", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health is the body of GET /health.
type Health struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	Uptime         float64   `json:"uptime"`
	DatabaseStatus string    `json:"database_status"`
	LastCheck      time.Time `json:"last_check"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	h := Health{Version: version, Uptime: now.Sub(s.started).Seconds(), LastCheck: now}
	if s.svc == nil {
		h.Status, h.DatabaseStatus = "unavailable", "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, h)
		return
	}
	st := s.svc.Status(r.Context())
	h.Status = st.AgentStatus
	h.DatabaseStatus = "degraded"
	if st.Search.Overall {
		h.DatabaseStatus = "healthy"
	}
	writeJSON(w, http.StatusOK, h)
}

// Stats is the body of GET /stats.
type Stats struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	StartupTime   time.Time       `json:"startup_time"`
	CurrentTime   time.Time       `json:"current_time"`
	APIVersion    string          `json:"api_version"`
	Settings      config.Tunables `json:"settings"`
	rag.SystemStatus
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, Stats{
		UptimeSeconds: now.Sub(s.started).Seconds(),
		StartupTime:   s.started,
		CurrentTime:   now,
		APIVersion:    version,
		Settings:      s.store.Get(),
		SystemStatus:  s.svc.Status(r.Context()),
	})
}

// ConfigResult is the body of POST /config.
type ConfigResult struct {
	Message         string         `json:"message"`
	UpdatedSettings map[string]any `json:"updated_settings"`
	Timestamp       time.Time      `json:"timestamp"`
}

func (s *server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var p config.Patch
	if !decode(w, r, &p) {
		return
	}
	_, err := s.store.Update(p)
	s.metrics.ObserveConfigUpdate(err)
	if err != nil {
		s.fail(w, "config update", err)
		return
	}

	updated := map[string]any{}
	if p.MaxSearchResults != nil {
		updated["max_search_results"] = *p.MaxSearchResults
	}
	if p.SimilarityThreshold != nil {
		updated["similarity_threshold"] = *p.SimilarityThreshold
	}
	if p.Model != nil {
		updated["openai_model"] = *p.Model
	}
	s.logger.Info("config updated", "updated", updated)
	writeJSON(w, http.StatusOK, ConfigResult{
		Message:         "設定が更新されました",
		UpdatedSettings: updated,
		Timestamp:       s.now(),
	})
}
