package server

import (
	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/gin-gonic/gin"
)

const identityKey = "vetbook.identity"

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			fail(c, auth.ErrUnauthorized)
			return
		}
		id, err := s.validator.Validate(token)
		if err != nil {
			fail(c, auth.ErrUnauthorized)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin() {
			fail(c, auth.ErrForbidden)
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}
	}
	id, _ := v.(auth.Identity)
	return id
}

func actor(c *gin.Context) booking.Actor {
	id := identity(c)
	return booking.Actor{UserID: id.UserID, Name: id.Name, Admin: id.IsAdmin()}
}
