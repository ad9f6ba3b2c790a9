//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/account"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type Lifecycle interface {
	Create(ctx context.Context, actor lifecycle.Actor, in lifecycle.DonationInput) (*storage.Donation, error)
	Edit(ctx context.Context, actor lifecycle.Actor, id int64, in lifecycle.DonationInput) (*storage.Donation, error)
	Cancel(ctx context.Context, actor lifecycle.Actor, id int64) (*storage.Donation, error)
	Accept(ctx context.Context, actor lifecycle.Actor, id int64, in lifecycle.AcceptInput) (*lifecycle.Acceptance, error)
	Track(ctx context.Context, actor lifecycle.Actor, id int64) (*lifecycle.TrackingView, error)
	Mine(ctx context.Context, actor lifecycle.Actor) ([]*storage.Donation, error)
	Available(ctx context.Context, actor lifecycle.Actor) ([]*storage.Donation, error)
	History(ctx context.Context, actor lifecycle.Actor, id int64) ([]*storage.AuditEntry, error)
}

type Accounts interface {
	Register(ctx context.Context, req account.RegisterRequest) (*storage.User, error)
	Login(ctx context.Context, req account.LoginRequest) (*account.Session, error)
	Logout(ctx context.Context, actor lifecycle.Actor) error
	Dashboard(ctx context.Context, actor lifecycle.Actor) (*account.Dashboard, error)
	Authenticate(ctx context.Context, claims *auth.Claims) (lifecycle.Actor, error)
}

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type Reports interface {
	ReceivedReport(ctx context.Context, organizationID int64, status storage.DonationStatus) ([]*storage.ReportRow, error)
}

type Server struct {
	engine    Lifecycle
	accounts  Accounts
	tokens    TokenParser
	reports   Reports
	logger    *zap.Logger
	server    *http.Server
	AccessLog *AccessLogManager
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithAccessLog(manager *AccessLogManager) Option {
	return func(s *Server) { s.AccessLog = manager }
}

func New(engine Lifecycle, accounts Accounts, tokens TokenParser, reports Reports, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		accounts: accounts,
		tokens:   tokens,
		reports:  reports,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.AccessLog == nil {
		s.AccessLog = NewAccessLogManager(2, 5, 500*time.Millisecond, s.logger)
	}
	return s
}

// Run serves HTTP on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AccessLog.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.logger.Info("HTTP server shutdown completed")

	s.AccessLog.Shutdown(ctx)
	return nil
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLogMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/users", s.handleRegister).Methods(http.MethodPost).Name("register")
	r.HandleFunc("/sessions", s.handleLogin).Methods(http.MethodPost).Name("login")

	api := r.NewRoute().Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/sessions", s.handleLogout).Methods(http.MethodDelete).Name("logout")
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet).Name("me")

	api.HandleFunc("/donations", s.handleCreateDonation).Methods(http.MethodPost).Name("create_donation")
	api.HandleFunc("/donations", s.handleListDonations).Methods(http.MethodGet).Name("list_donations")
	api.HandleFunc("/donations/available", s.handleAvailableDonations).Methods(http.MethodGet).Name("available_donations")
	api.HandleFunc("/donations/export", s.handleExport).Methods(http.MethodGet).Name("export_donations")
	api.HandleFunc("/donations/{id:[0-9]+}", s.handleEditDonation).Methods(http.MethodPut).Name("edit_donation")
	api.HandleFunc("/donations/{id:[0-9]+}/cancel", s.handleCancelDonation).Methods(http.MethodPost).Name("cancel_donation")
	api.HandleFunc("/donations/{id:[0-9]+}/accept", s.handleAcceptDonation).Methods(http.MethodPost).Name("accept_donation")
	api.HandleFunc("/donations/{id:[0-9]+}/tracking", s.handleTracking).Methods(http.MethodGet).Name("tracking")
	api.HandleFunc("/donations/{id:[0-9]+}/history", s.handleHistory).Methods(http.MethodGet).Name("history")

	return r
}

type errorResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
	Code  string      `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Error("failed to encode response", zap.Error(err))
		}
	}
}

// respondError writes err as the JSON error body. Internal failures are
// reported without their cause.
func respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("internal error", err)
	}
	message := appErr.Message
	if appErr.Kind == apperr.KindInternal {
		message = "internal error"
	}
	respondJSON(w, appErr.Kind.HTTPStatus(), errorResponse{
		Error: message,
		Kind:  appErr.Kind,
		Code:  appErr.Code,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
