package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/danmuck/vetbook/internal/observability"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerCustomerRoutes(r *gin.RouterGroup) {
	r.GET("/me", s.me)

	r.GET("/pets", s.listPets)
	r.POST("/pets", s.createPet)
	r.GET("/pets/:id", s.getPet)
	r.PUT("/pets/:id", s.updatePet)
	r.DELETE("/pets/:id", s.deletePet)

	r.GET("/appointments", s.listAppointments)
	r.POST("/appointments", s.book)
	r.GET("/appointments/:id", s.getAppointment)
	r.POST("/appointments/:id/cancel", s.cancelAppointment)

	r.POST("/reviews", s.submitReview)
}

// userView is a User without its password hash.
type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func viewUser(u auth.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (s *Server) me(c *gin.Context) {
	id := identity(c)
	u, err := s.accounts.User(id.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		// static service token has no stored account
		c.JSON(http.StatusOK, gin.H{"identity": id})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": id, "user": viewUser(u)})
}

func (s *Server) listPets(c *gin.Context) {
	pets, err := s.clinic.ListPets(identity(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pets": pets})
}

func (s *Server) createPet(c *gin.Context) {
	var in booking.PetInput
	if !bind(c, &in) {
		return
	}
	pet, err := s.clinic.RegisterPet(identity(c).UserID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, pet)
}

func (s *Server) getPet(c *gin.Context) {
	pet, err := s.clinic.Pet(identity(c).UserID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pet)
}

func (s *Server) updatePet(c *gin.Context) {
	var in booking.PetInput
	if !bind(c, &in) {
		return
	}
	pet, err := s.clinic.UpdatePet(identity(c).UserID, c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pet)
}

func (s *Server) deletePet(c *gin.Context) {
	if err := s.clinic.DeletePet(identity(c).UserID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAppointments(c *gin.Context) {
	appts, err := s.clinic.ListAppointments(identity(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (s *Server) book(c *gin.Context) {
	var req booking.BookingRequest
	if !bind(c, &req) {
		return
	}
	appt, err := s.clinic.Book(identity(c).UserID, req)
	observability.RecordBooking(bookingOutcome(err), req.HomeVisit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, booking.ErrConflict):
		return "conflict"
	case errors.Is(err, booking.ErrInvalid), errors.Is(err, booking.ErrNotFound):
		return "invalid"
	default:
		return "error"
	}
}

func (s *Server) getAppointment(c *gin.Context) {
	appt, err := s.clinic.Appointment(actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) cancelAppointment(c *gin.Context) {
	appt, err := s.clinic.Cancel(actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	observability.RecordAppointmentTransition(string(appt.Status))
	c.JSON(http.StatusOK, appt)
}

func (s *Server) submitReview(c *gin.Context) {
	var in booking.ReviewInput
	if !bind(c, &in) {
		return
	}
	review, err := s.clinic.SubmitReview(actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}
