// Package server exposes the clinic over a gin JSON API: public catalog and
// availability, customer booking, and the admin console.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/danmuck/vetbook/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Deps are the collaborators the API is built on. A nil Validator falls
// back to Accounts.
type Deps struct {
	Clinic      *booking.Clinic
	Accounts    *auth.Accounts
	Validator   auth.Validator
	CorsOrigins []string
}

type Server struct {
	ID       string    `json:"id"`
	Appeared time.Time `json:"appeared"`

	clinic    *booking.Clinic
	accounts  *auth.Accounts
	validator auth.Validator
	router    *gin.Engine
}

// New builds the engine with middleware and all routes registered.
func New(id string, deps Deps) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(deps.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	validator := deps.Validator
	if validator == nil {
		validator = deps.Accounts
	}
	s := &Server{
		ID:        id,
		Appeared:  time.Now(),
		clinic:    deps.Clinic,
		accounts:  deps.Accounts,
		validator: validator,
		router:    r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// RegisterRoutes wires every route group onto the engine.
func (s *Server) RegisterRoutes() {
	s.registerPublicRoutes(s.router.Group(""))

	customer := s.router.Group("")
	customer.Use(s.requireAuth())
	s.registerCustomerRoutes(customer)

	admin := s.router.Group("/admin")
	admin.Use(s.requireAuth(), requireAdmin())
	s.registerAdminRoutes(admin)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.Appeared).String(),
		"service": s.ID,
		"version": version,
	})
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
