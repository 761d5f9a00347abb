// Package api exposes the HTTP surface of the FuelQ Pro console: the
// Twilio WhatsApp webhook, the console health and verification endpoints,
// and the plan document download proxy.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/gricce/fuelqpro-console/internal/blob"
)

// MessageHandler processes one inbound message and returns the reply text.
// Satisfied by *flow.Engine.
type MessageHandler interface {
	Handle(ctx context.Context, userID, message string) string
}

// APIVerifier confirms the text-generation backend accepts the configured
// credentials, returning a sample completion. Satisfied by *genai.Client.
type APIVerifier interface {
	Verify(ctx context.Context) (string, error)
}

// Opts holds configuration options for the Server.
type Opts struct {
	Addr            string
	TwilioAuthToken string
	PublicBaseURL   string
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr sets the listen address (default ":8080").
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTwilioAuthToken enables webhook signature validation using the
// account's auth token. Without it, webhook requests are accepted as-is.
func WithTwilioAuthToken(token string) Option {
	return func(o *Opts) { o.TwilioAuthToken = token }
}

// WithPublicBaseURL sets the externally visible base URL used to validate
// webhook signatures behind a proxy (e.g. "https://bot.example.com").
func WithPublicBaseURL(url string) Option {
	return func(o *Opts) { o.PublicBaseURL = url }
}

// Server routes HTTP traffic to the conversation engine and the console
// support endpoints. The bucket and verifier are optional; their endpoints
// report unconfigured when absent.
type Server struct {
	engine   MessageHandler
	bucket   blob.Bucket
	verifier APIVerifier

	addr      string
	validator *twilioclient.RequestValidator
	publicURL string
}

// NewServer creates a Server around the conversation engine.
func NewServer(engine MessageHandler, bucket blob.Bucket, verifier APIVerifier, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	s := &Server{
		engine:    engine,
		bucket:    bucket,
		verifier:  verifier,
		addr:      o.Addr,
		publicURL: o.PublicBaseURL,
	}
	if o.TwilioAuthToken != "" {
		v := twilioclient.NewRequestValidator(o.TwilioAuthToken)
		s.validator = &v
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/whatsapp", s.whatsappHandler)
	mux.HandleFunc("/fuelqpro/console/health", s.healthHandler)
	mux.HandleFunc("/fuelqpro/console/verify-api-key", s.verifyAPIKeyHandler)
	mux.HandleFunc("/fuelqpro/console/verify-gcs", s.verifyGCSHandler)
	mux.HandleFunc("/fuelqpro/console/download/", s.downloadHandler)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
		}
	}()

	slog.Info("Server.Run: listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
