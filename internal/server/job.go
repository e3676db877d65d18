package server

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
)

type postJobRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	MinYears    int      `json:"min_years"`
	Featured    bool     `json:"featured"`
}

func (s *Server) PostJob(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req postJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.jobSvc.PostJob(c.Request.Context(), jobdomain.PostJobRequest{
		EmployerID:  userID,
		Title:       req.Title,
		Description: req.Description,
		Skills:      req.Skills,
		MinYears:    req.MinYears,
		Featured:    req.Featured,
		Client:      clientInfo(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, created)
}

func (s *Server) ListJobs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	jobs, err := s.jobSvc.ListJobs(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, jobs)
}

// GetJob accepts either a snowflake ID or a slug.
func (s *Server) GetJob(c *gin.Context) {
	ref := c.Param("id")

	if id, err := snowflake.ParseString(ref); err == nil {
		found, err := s.jobSvc.GetJob(c.Request.Context(), id)
		if err == nil {
			respondOK(c, found)
			return
		}
	}

	found, err := s.jobSvc.GetJobBySlug(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, found)
}

func (s *Server) CloseJob(c *gin.Context) {
	userID, _ := currentUserID(c)

	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.jobSvc.CloseJob(c.Request.Context(), userID, jobID); err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, nil)
}

type applyRequest struct {
	Headline    string   `json:"headline"`
	CoverLetter string   `json:"cover_letter"`
	Skills      []string `json:"skills"`
	Years       int      `json:"years"`
}

func (s *Server) ApplyToJob(c *gin.Context) {
	userID, _ := currentUserID(c)

	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	app, err := s.jobSvc.SubmitApplication(c.Request.Context(), jobdomain.ApplyRequest{
		JobID:       jobID,
		UserID:      userID,
		Headline:    req.Headline,
		CoverLetter: req.CoverLetter,
		Skills:      req.Skills,
		Years:       req.Years,
		Client:      clientInfo(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, app)
}

func (s *Server) TriggerMatching(c *gin.Context) {
	userID, _ := currentUserID(c)

	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.jobSvc.TriggerMatching(c.Request.Context(), userID, jobID, clientInfo(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) ListApplications(c *gin.Context) {
	userID, _ := currentUserID(c)

	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	apps, err := s.jobSvc.ListApplications(c.Request.Context(), userID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, apps)
}
