package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/metrics"
	"github.com/creator-xp/internal/service"
	"github.com/creator-xp/internal/webhook"
)

const defaultMaxBodyBytes = 1 << 20

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the handler's own settings
type Config struct {
	InternalSecret       string
	LeaderboardChannelID string
	MaxBodyBytes         int64
}

// Handler provides the HTTP surface of the service
type Handler struct {
	identity    *service.IdentityService
	orders      *service.OrderService
	leaderboard *service.LeaderboardService
	store       Pinger
	config      Config
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identity *service.IdentityService,
	orders *service.OrderService,
	leaderboard *service.LeaderboardService,
	store Pinger,
	cfg Config,
	logger *slog.Logger,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		identity:    identity,
		orders:      orders,
		leaderboard: leaderboard,
		store:       store,
		config:      cfg,
		logger:      logger,
	}
}

// APIResponse is the error envelope
type APIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook/orders-paid", h.OrdersPaid)

	// Public read, callable from browsers
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Options("/leaderboard", func(w http.ResponseWriter, r *http.Request) {})
	})

	// Internal callers
	r.Group(func(r chi.Router) {
		r.Use(h.requireBearer)
		r.Post("/map-email", h.MapEmail)
		r.Post("/leaderboard/publish", h.PublishLeaderboard)
	})

	return r
}

// requestLogger logs one line per request with the slog logger
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// requireBearer rejects requests whose bearer token does not match the
// internal secret. An unset secret rejects everything.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || h.config.InternalSecret == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.config.InternalSecret)) != 1 {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeOK writes {"ok":true} merged with fields
func (h *Handler) writeOK(w http.ResponseWriter, fields map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	h.writeJSON(w, http.StatusOK, body)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		OK:    false,
		Error: err.Error(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, map[string]interface{}{"status": "healthy"})
}

// ReadyCheck reports whether the store is reachable
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, errors.New("store unavailable"))
			return
		}
	}
	h.writeOK(w, map[string]interface{}{"status": "ready"})
}

// MapEmail binds a purchaser email to a community member
func (h *Handler) MapEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.MapEmailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if _, err := h.identity.MapEmailToMember(r.Context(), req); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: email and member_id are required", domain.ErrInvalidRequest))
			return
		}
		h.logger.Error("failed to map email", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeOK(w, nil)
}

// OrdersPaid handles the signed orders/paid webhook. The body is read once
// and verified byte for byte before it is parsed. Anything that
// authenticates is answered with 200, including orders that award nothing.
// A storage failure is answered with 500 on purpose so the platform retries
// the delivery; the failed call wrote nothing, so a retry cannot double count.
func (h *Handler) OrdersPaid(w http.ResponseWriter, r *http.Request) {
	deliveryID := r.Header.Get(webhook.IDHeader)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := h.logger.With("delivery_id", deliveryID)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, domain.ErrInvalidRequest)
			return
		}
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	res, err := h.orders.HandlePurchase(r.Context(), raw, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		if domain.IsAuthError(err) {
			metrics.WebhooksTotal.WithLabelValues("http", "unauthorized").Inc()
			logger.Warn("rejected webhook with bad signature")
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		metrics.WebhooksTotal.WithLabelValues("http", "error").Inc()
		logger.Error("failed to process order", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	metrics.WebhooksTotal.WithLabelValues("http", string(res.Outcome)).Inc()
	logger.Debug("webhook handled", "order_id", res.OrderID, "result", res.Outcome)
	h.writeOK(w, map[string]interface{}{"result": res.Outcome})
}

// GetLeaderboard returns the ranked top rows
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.leaderboard.DefaultLimit()
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	rows, err := h.leaderboard.TopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeOK(w, map[string]interface{}{"rows": rows})
}

// PublishLeaderboard creates or updates the announcement message
func (h *Handler) PublishLeaderboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.leaderboard.Publish(r.Context(), h.config.LeaderboardChannelID)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotConfigured) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to publish leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeOK(w, map[string]interface{}{
		"message_id": res.MessageID,
		"action":     res.Action,
	})
}
