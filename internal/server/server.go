// Package server wires the HTTP surface: route validation, session checks,
// and the admin gate in front of the stores.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"kasirkuy/internal/auth"
	"kasirkuy/internal/config"
	"kasirkuy/internal/receipt"
	"kasirkuy/internal/store"
	"kasirkuy/internal/uploads"
)

// Server holds every collaborator a handler needs. Nothing is package-level;
// shared state (throttle, revocation set) comes in through interfaces.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	users    *store.UserStore
	products *store.ProductStore
	tokens   *auth.TokenService
	throttle auth.Throttle
	uploads  *uploads.Manager
	receipts *receipt.Renderer
}

func New(
	cfg *config.Config,
	log *slog.Logger,
	users *store.UserStore,
	products *store.ProductStore,
	tokens *auth.TokenService,
	throttle auth.Throttle,
	um *uploads.Manager,
	receipts *receipt.Renderer,
) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		users:    users,
		products: products,
		tokens:   tokens,
		throttle: throttle,
		uploads:  um,
		receipts: receipts,
	}
}

// Router builds the gin engine with the full route surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.log), gin.Recovery())

	cookieStore := cookie.NewStore([]byte(s.cfg.JWTSecret))
	cookieStore.Options(sessions.Options{HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("kasirkuy_session", cookieStore))

	strict := rateLimit(newRateLimiter(s.cfg.StrictRateLimit),
		"Too many attempts. Please try again later.")
	moderate := rateLimit(newRateLimiter(s.cfg.ModerateRateLimit),
		"Request limit exceeded. Please try again later.")

	api := r.Group("/api")
	api.POST("/register", strict, s.Register)
	api.POST("/login", s.Login)
	api.GET("/uploads/:filename", s.ServeUpload)

	authed := api.Group("", moderate, s.Authenticate)
	authed.POST("/logout", s.Logout)
	authed.GET("/verify", s.Verify)

	authed.GET("/products", s.ListProducts)
	authed.POST("/products", s.CreateProduct)
	authed.PUT("/products/:id", s.UpdateProduct)
	authed.DELETE("/products/:id", s.DeleteProduct)

	authed.POST("/generate-receipt", s.GenerateReceipt)

	admin := authed.Group("/admin", s.RequireAdmin)
	admin.GET("/users", s.AdminListUsers)
	admin.POST("/users", s.AdminCreateUser)
	admin.PUT("/users/:id", s.AdminUpdateUser)
	admin.DELETE("/users/:id", s.AdminDeleteUser)
	admin.GET("/products", s.AdminListProducts)
	admin.POST("/products", s.AdminCreateProduct)
	admin.PUT("/products/:id", s.AdminUpdateProduct)
	admin.DELETE("/products/:id", s.AdminDeleteProduct)

	return r
}

// sweep runs the uploads reconciliation pass inside the request that
// triggered it, logging rather than failing the request on error.
func (s *Server) sweep() {
	if err := s.uploads.Sweep(); err != nil {
		s.log.Warn("uploads sweep failed", "error", err)
	}
}
