// Package api exposes the HTTP interface for the worker service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobsift/crawlworker/internal/config"
	"github.com/jobsift/crawlworker/internal/crawl"
	"github.com/jobsift/crawlworker/internal/metrics"
	"github.com/jobsift/crawlworker/internal/outreach"
	"github.com/jobsift/crawlworker/internal/signature"
)

// maxBodyBytes bounds inbound request bodies; crawl submissions are small.
const maxBodyBytes = 1 << 20

// Server wires HTTP handlers to the queue and the outreach scheduler.
type Server struct {
	router    chi.Router
	verifier  *signature.Verifier
	queue     crawl.Queue
	scheduler *outreach.Scheduler
	forwarder *Forwarder
	idGen     crawl.IDGenerator
	clock     crawl.Clock
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	verifier *signature.Verifier,
	queue crawl.Queue,
	scheduler *outreach.Scheduler,
	forwarder *Forwarder,
	idGen crawl.IDGenerator,
	clock crawl.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		verifier:  verifier,
		queue:     queue,
		scheduler: scheduler,
		forwarder: forwarder,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/worker/health", s.health)
	r.Post("/worker/crawl", s.submitCrawl)
	r.Post("/worker/outreach-tick", s.outreachTick)
	r.Get("/worker/outreach-tick", s.outreachTick)
	r.Post("/worker/outreach-callback", s.outreachCallback)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	URLs               []string          `json:"urls"`
	Keywords           []string          `json:"keywords"`
	MaxLinksPerListing *int              `json:"maxLinksPerListing"`
	MinScore           *int              `json:"minScore"`
	Options            *crawlReqOptions  `json:"options"`
	Metadata           map[string]string `json:"metadata"`
}

type crawlReqOptions struct {
	RespectRobots *bool `json:"respectRobots"`
	Snapshots     *bool `json:"snapshots"`
}

// submitCrawl verifies the request signature over the raw body before any
// parsing, then either forwards the payload to the legacy backend or enqueues
// a task. Responses: 401 bad signature, 400 bad payload, 503 full queue,
// 202 accepted.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	provided := r.Header.Get("X-Webhook-Signature")
	if err := s.verifier.Verify(body, provided); err != nil {
		s.logger.Warn("rejected crawl request", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req crawlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}

	if s.forwarder != nil {
		if err := s.forwarder.Forward(r.Context(), body); err != nil {
			s.logger.Warn("legacy forward failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "forwarding failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "forwarded": true})
		return
	}

	task, err := s.toTask(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.queue.TryEnqueue(task); err != nil {
		if errors.Is(err, crawl.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue full, retry later")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "task_id": task.ID})
}

func (s *Server) toTask(req crawlRequest) (crawl.CrawlTask, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return crawl.CrawlTask{}, errors.New("generate task id")
	}
	task := crawl.CrawlTask{
		ID:            id,
		URLs:          req.URLs,
		Keywords:      req.Keywords,
		MaxCandidates: valueOrDefault(req.MaxLinksPerListing, s.cfg.Crawler.MaxCandidates),
		MinScore:      valueOrDefault(req.MinScore, 0),
		Metadata:      req.Metadata,
		Submitted:     s.clock.Now().Unix(),
	}
	if req.Options != nil {
		if req.Options.RespectRobots != nil {
			task.Options.RespectRobots = *req.Options.RespectRobots
			task.Options.RespectRobotsProvided = true
		}
		if req.Options.Snapshots != nil {
			task.Options.Snapshots = *req.Options.Snapshots
		}
	}
	return task, nil
}

// outreachTick runs one scheduler pass. Both GET and POST are accepted so
// plain cron hooks can trigger it.
func (s *Server) outreachTick(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.Tick(r.Context())
	if err != nil {
		s.logger.Error("outreach tick failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "outreach tick failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type callbackRequest struct {
	MessageID string            `json:"message_id"`
	Responded bool              `json:"responded"`
	Metadata  map[string]string `json:"metadata"`
}

func (s *Server) outreachCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id required")
		return
	}
	if err := s.scheduler.HandleCallback(r.Context(), req.MessageID, req.Responded, req.Metadata); err != nil {
		if errors.Is(err, crawl.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		s.logger.Error("outreach callback failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "callback failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
