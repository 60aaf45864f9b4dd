package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerPublicRoutes(r *gin.RouterGroup) {
	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", s.register)
	r.POST("/auth/login", s.login)

	r.GET("/services", s.listServices)
	r.GET("/communes", s.listCommunes)
	r.GET("/faqs", s.listFAQs)
	r.GET("/reviews", s.publicReviews)
	r.GET("/slots", s.availableSlots)
	r.POST("/quote", s.quote)
}

// ready reports whether the data file answers reads.
func (s *Server) ready(c *gin.Context) {
	if _, err := s.clinic.CatalogEmpty(); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) register(c *gin.Context) {
	var reg auth.Registration
	if !bind(c, &reg) {
		return
	}
	if _, err := s.accounts.Register(reg); err != nil {
		fail(c, err)
		return
	}
	session, err := s.accounts.Login(reg.Email, reg.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	session, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) listServices(c *gin.Context) {
	services, err := s.clinic.ListServices(false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *Server) listCommunes(c *gin.Context) {
	communes, err := s.clinic.ListCommunes(false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communes": communes})
}

func (s *Server) listFAQs(c *gin.Context) {
	faqs, err := s.clinic.ListFAQs(false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faqs": faqs})
}

func (s *Server) publicReviews(c *gin.Context) {
	summary, err := s.clinic.PublicReviews()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) availableSlots(c *gin.Context) {
	filter, err := s.slotFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	filter.Status = ""
	slots, err := s.clinic.AvailableSlots(filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (s *Server) quote(c *gin.Context) {
	var req booking.QuoteRequest
	if !bind(c, &req) {
		return
	}
	q, err := s.clinic.Quote(req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// slotFilter reads from/to (YYYY-MM-DD, both inclusive, clinic time), vet and
// status query parameters.
func (s *Server) slotFilter(c *gin.Context) (booking.SlotFilter, error) {
	var f booking.SlotFilter
	loc := s.clinic.Location()
	if raw := c.Query("from"); raw != "" {
		from, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return f, fmt.Errorf("%w: from must be YYYY-MM-DD", errBadRequest)
		}
		f.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return f, fmt.Errorf("%w: to must be YYYY-MM-DD", errBadRequest)
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, errors.Join(errBadRequest, errors.New("from must not be after to"))
	}
	f.VetID = c.Query("vet")
	if raw := c.Query("status"); raw != "" {
		switch st := booking.SlotStatus(raw); st {
		case booking.SlotAvailable, booking.SlotBooked, booking.SlotBlocked:
			f.Status = st
		default:
			return f, fmt.Errorf("%w: unknown slot status %q", errBadRequest, raw)
		}
	}
	return f, nil
}
