package handlers

import (
	"net/http"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/auth"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/db"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/ledger"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/middleware"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Auth              *auth.Service
	Users             db.UserCollection
	Ledger            *ledger.Service
	RateLimitRequests int
	RateLimitWindow   int // seconds
	TrustProxy        bool
}

// NewRouter builds the API handler. Every route except login, register and
// health needs a bearer token; expense routes also need manage_expenses.
func NewRouter(cfg RouterConfig) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Users)
	expenseHandler := NewExpenseHandler(cfg.Ledger)
	expenses := authMiddleware.RequirePermission(models.PermManageExpenses)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", authHandler.UpdateProfile)
	mux.HandleFunc("POST /api/auth/password", authHandler.ChangePassword)

	mux.Handle("POST /api/expenses", expenses(http.HandlerFunc(expenseHandler.Create)))
	mux.Handle("GET /api/expenses", expenses(http.HandlerFunc(expenseHandler.List)))
	mux.Handle("GET /api/expenses/stats", expenses(http.HandlerFunc(expenseHandler.Stats)))
	mux.Handle("GET /api/expenses/{id}", expenses(http.HandlerFunc(expenseHandler.Get)))
	mux.Handle("PUT /api/expenses/{id}", expenses(http.HandlerFunc(expenseHandler.Update)))
	mux.Handle("DELETE /api/expenses/{id}", expenses(http.HandlerFunc(expenseHandler.Delete)))

	var handler http.Handler = authMiddleware.Authenticate(mux)
	limiter := middleware.NewRateLimitMiddleware()
	limiter.TrustProxy = cfg.TrustProxy
	handler = limiter.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)(handler)
	return middleware.RequestLogger(handler)
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
