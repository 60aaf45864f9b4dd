package server

import (
	"net/http"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/danmuck/vetbook/internal/observability"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerAdminRoutes(r *gin.RouterGroup) {
	r.POST("/schedule/generate", s.generateSchedule)
	r.GET("/slots", s.adminSlots)
	r.POST("/slots/:id/block", s.blockSlot)
	r.POST("/slots/:id/unblock", s.unblockSlot)
	r.DELETE("/slots/:id", s.deleteSlot)

	r.GET("/appointments", s.adminAppointments)
	r.POST("/appointments/:id/status", s.setAppointmentStatus)

	r.GET("/reviews", s.adminReviews)
	r.POST("/reviews/:id/approve", s.moderateReview(true))
	r.POST("/reviews/:id/reject", s.moderateReview(false))
	r.DELETE("/reviews/:id", s.deleteReview)

	r.GET("/faqs", s.adminFAQs)
	r.POST("/faqs", s.createFAQ)
	r.PUT("/faqs/:id", s.updateFAQ)
	r.DELETE("/faqs/:id", s.deleteFAQ)

	r.GET("/services", s.adminServices)
	r.POST("/services", s.createService)
	r.PUT("/services/:id", s.updateService)
	r.GET("/communes", s.adminCommunes)
	r.POST("/communes", s.createCommune)
	r.PUT("/communes/:id", s.updateCommune)

	r.GET("/users", s.listUsers)
	r.POST("/users/:id/role", s.setRole)
}

func (s *Server) generateSchedule(c *gin.Context) {
	var req booking.GenerateRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.clinic.GenerateMassSchedule(req)
	if err != nil {
		fail(c, err)
		return
	}
	observability.RecordGeneratedSlots(res.Created, res.SkippedExisting, res.SkippedPast)
	c.JSON(http.StatusOK, res)
}

func (s *Server) adminSlots(c *gin.Context) {
	filter, err := s.slotFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	slots, err := s.clinic.ListSlots(filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (s *Server) blockSlot(c *gin.Context) {
	slot, err := s.clinic.BlockSlot(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) unblockSlot(c *gin.Context) {
	slot, err := s.clinic.UnblockSlot(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) deleteSlot(c *gin.Context) {
	if err := s.clinic.DeleteSlot(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminAppointments(c *gin.Context) {
	var status booking.AppointmentStatus
	if raw := c.Query("status"); raw != "" {
		st, err := booking.ParseAppointmentStatus(raw)
		if err != nil {
			fail(c, err)
			return
		}
		status = st
	}
	appts, err := s.clinic.ListAllAppointments(status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) setAppointmentStatus(c *gin.Context) {
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	to, err := booking.ParseAppointmentStatus(req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	appt, err := s.clinic.SetAppointmentStatus(c.Param("id"), to)
	if err != nil {
		fail(c, err)
		return
	}
	observability.RecordAppointmentTransition(string(appt.Status))
	c.JSON(http.StatusOK, appt)
}

func (s *Server) adminReviews(c *gin.Context) {
	var status booking.ReviewStatus
	if raw := c.Query("status"); raw != "" {
		st, err := booking.ParseReviewStatus(raw)
		if err != nil {
			fail(c, err)
			return
		}
		status = st
	}
	reviews, err := s.clinic.ListReviews(status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (s *Server) moderateReview(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		review, err := s.clinic.ModerateReview(c.Param("id"), approve)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

func (s *Server) deleteReview(c *gin.Context) {
	if err := s.clinic.DeleteReview(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminFAQs(c *gin.Context) {
	faqs, err := s.clinic.ListFAQs(true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faqs": faqs})
}

func (s *Server) createFAQ(c *gin.Context) {
	var in booking.FAQInput
	if !bind(c, &in) {
		return
	}
	faq, err := s.clinic.CreateFAQ(in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, faq)
}

func (s *Server) updateFAQ(c *gin.Context) {
	var in booking.FAQInput
	if !bind(c, &in) {
		return
	}
	faq, err := s.clinic.UpdateFAQ(c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, faq)
}

func (s *Server) deleteFAQ(c *gin.Context) {
	if err := s.clinic.DeleteFAQ(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminServices(c *gin.Context) {
	services, err := s.clinic.ListServices(true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *Server) createService(c *gin.Context) {
	var in booking.ServiceInput
	if !bind(c, &in) {
		return
	}
	svc, err := s.clinic.CreateService(in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (s *Server) updateService(c *gin.Context) {
	var in booking.ServiceInput
	if !bind(c, &in) {
		return
	}
	svc, err := s.clinic.UpdateService(c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) adminCommunes(c *gin.Context) {
	communes, err := s.clinic.ListCommunes(true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communes": communes})
}

func (s *Server) createCommune(c *gin.Context) {
	var in booking.CommuneInput
	if !bind(c, &in) {
		return
	}
	commune, err := s.clinic.CreateCommune(in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, commune)
}

func (s *Server) updateCommune(c *gin.Context) {
	var in booking.CommuneInput
	if !bind(c, &in) {
		return
	}
	commune, err := s.clinic.UpdateCommune(c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, commune)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.accounts.ListUsers()
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewUser(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) setRole(c *gin.Context) {
	var req roleRequest
	if !bind(c, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := s.accounts.SetRole(c.Param("id"), role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}
