package server

import (
	"github.com/gin-gonic/gin"

	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
	"github.com/MNhat168/careerhub/internal/userctx"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.userSvc.Register(c.Request.Context(), userdomain.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     userdomain.RoleMember,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	grant, err := s.userSvc.IssueToken(c.Request.Context(), created.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, grant)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.userSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Login rotates the API token; the previous one stops working.
	grant, err := s.userSvc.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, grant)
}

func (s *Server) RotateToken(c *gin.Context) {
	userID, ok := userctx.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	grant, err := s.userSvc.IssueToken(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, grant)
}

func (s *Server) Me(c *gin.Context) {
	userID, ok := userctx.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.userSvc.GetByID(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, user)
}
