// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/bond-service/internal/analysis"
	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/service"
)

// Service interfaces for dependency injection and testing

// TokenServiceInterface issues and validates bearer tokens
type TokenServiceInterface interface {
	IssuePair(user *models.User) (*auth.TokenPair, error)
	Refresh(refreshToken string) (string, error)
	Verify(token string) error
	ParseAccess(token string) (*auth.Principal, error)
}

// UserServiceInterface defines the interface for user service operations
type UserServiceInterface interface {
	Register(ctx context.Context, input *service.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	ListUsers(ctx context.Context, principal *auth.Principal) ([]*models.User, error)
	GetUser(ctx context.Context, id string, principal *auth.Principal) (*models.User, error)
	UpdateUser(ctx context.Context, id string, input *service.UpdateUserInput, partial bool, principal *auth.Principal) (*models.User, error)
	DeleteUser(ctx context.Context, id string, principal *auth.Principal) error
}

// PortfolioServiceInterface defines the interface for portfolio service operations
type PortfolioServiceInterface interface {
	CreatePortfolio(ctx context.Context, input *service.CreatePortfolioInput, principal *auth.Principal) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, principal *auth.Principal) ([]*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id string, principal *auth.Principal) (*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, id string, input *service.UpdatePortfolioInput, partial bool, principal *auth.Principal) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string, principal *auth.Principal) error
}

// BondServiceInterface defines the interface for bond service operations
type BondServiceInterface interface {
	CreateBond(ctx context.Context, input *service.BondInput, principal *auth.Principal) (*models.Bond, error)
	ListBonds(ctx context.Context, principal *auth.Principal) ([]*models.Bond, error)
	GetBond(ctx context.Context, id string, principal *auth.Principal) (*models.Bond, error)
	UpdateBond(ctx context.Context, id string, input *service.BondInput, partial bool, principal *auth.Principal) (*models.Bond, error)
	DeleteBond(ctx context.Context, id string, principal *auth.Principal) error
}

// AnalysisServiceInterface defines the interface for portfolio analysis
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, portfolioID string, principal *auth.Principal) (*analysis.Result, error)
}

// HealthChecker is a dependency reported by /health
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	tokens           TokenServiceInterface
	userService      UserServiceInterface
	portfolioService PortfolioServiceInterface
	bondService      BondServiceInterface
	analysisService  AnalysisServiceInterface
	checks           map[string]HealthChecker
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	UserRPS        int // Requests per second for regular users and anonymous clients
	SuperuserRPS   int // Requests per second for superusers
	Burst          int
	AllowedOrigins []string
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	tokens TokenServiceInterface,
	userService UserServiceInterface,
	portfolioService PortfolioServiceInterface,
	bondService BondServiceInterface,
	analysisService AnalysisServiceInterface,
	checks map[string]HealthChecker,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		tokens:           tokens,
		userService:      userService,
		portfolioService: portfolioService,
		bondService:      bondService,
		analysisService:  analysisService,
		checks:           checks,
		config:           config,
	}

	s.setupRouter()

	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.UserRPS, s.config.SuperuserRPS, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	s.router.Use(AuthenticationMiddleware(s.tokens))
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// preflight requests must match a route for the middleware to run
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Token endpoints
	api.HandleFunc("/token", s.handleObtainToken).Methods("POST")
	api.HandleFunc("/token/refresh", s.handleRefreshToken).Methods("POST")
	api.HandleFunc("/token/verify", s.handleVerifyToken).Methods("POST")

	// User endpoints
	api.HandleFunc("/user_register", s.handleRegister).Methods("POST")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}", s.handleUpdateUser).Methods("PUT", "PATCH")
	api.HandleFunc("/users/{id}", s.handleDeleteUser).Methods("DELETE")

	// Portfolio endpoints
	api.HandleFunc("/portfolios", s.handleListPortfolios).Methods("GET")
	api.HandleFunc("/portfolios", s.handleCreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", s.handleUpdatePortfolio).Methods("PUT", "PATCH")
	api.HandleFunc("/portfolios/{id}", s.handleDeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/analysis", s.handlePortfolioAnalysis).Methods("GET")

	// Bond endpoints
	api.HandleFunc("/bonds", s.handleListBonds).Methods("GET")
	api.HandleFunc("/bonds", s.handleCreateBond).Methods("POST")
	api.HandleFunc("/bonds/{id}", s.handleGetBond).Methods("GET")
	api.HandleFunc("/bonds/{id}", s.handleUpdateBond).Methods("PUT", "PATCH")
	api.HandleFunc("/bonds/{id}", s.handleDeleteBond).Methods("DELETE")

	// Analysis endpoint
	api.HandleFunc("/portfolio_investment_analysis", s.handleInvestmentAnalysis).Methods("GET")
}

// handleHealth pings every dependency and reports 503 if any is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			logging.FromContext(ctx).WithError(err).WithField("component", name).Warn("Health check failed")
			components[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "healthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":     overall,
		"service":    "bond-service",
		"components": components,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
