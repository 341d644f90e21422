package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - dictated by the event push signature scheme
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/metrics"
	"github.com/kvcfdd/yunzai-go/internal/middleware"
	"github.com/kvcfdd/yunzai-go/internal/models"
	"github.com/kvcfdd/yunzai-go/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	dispatcher *service.Dispatcher
	cfg        *models.Config
	server     *http.Server

	// baseCtx outlives individual webhook requests so event handling is not
	// cut short when the push connection closes.
	baseCtx context.Context
}

func NewServer(baseCtx context.Context, cfg *models.Config, dispatcher *service.Dispatcher, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		dispatcher: dispatcher,
		cfg:        cfg,
		baseCtx:    baseCtx,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	events := s.router.PathPrefix("/event").Subrouter()
	events.HandleFunc("", s.handleEvent()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Warn("Failed to write health response")
		}
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics.GetAllMetrics()); err != nil {
			s.logger.WithError(err).Warn("Failed to write metrics response")
		}
	}
}

// handleEvent receives pushed platform events. The push is acknowledged
// immediately; handling continues in the background because command handlers
// may spend seconds on upstream API calls.
func (s *Server) handleEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		if !s.verifySignature(r, body) {
			s.logger.Warn("Rejected event push with bad signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		go s.dispatcher.HandleEvent(s.baseCtx, body)
		w.WriteHeader(http.StatusNoContent)
	}
}

// verifySignature checks the sha1 HMAC the platform sends when a push
// secret is configured. Without a configured secret every push is accepted.
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	secret := s.cfg.Server.WebhookSecret
	if secret == "" {
		return true
	}

	signature := strings.TrimPrefix(r.Header.Get("X-Signature"), "sha1=")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
