package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope is the uniform response shape. The HTTP status always mirrors
// Code so clients can read either.
type envelope struct {
	Status  bool   `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

func respond(c *gin.Context, code int, message string, result any) {
	c.JSON(code, envelope{
		Status:  code < http.StatusBadRequest,
		Code:    code,
		Message: message,
		Result:  result,
	})
}

func respondOK(c *gin.Context, result any) {
	respond(c, http.StatusOK, "ok", result)
}

func respondCreated(c *gin.Context, result any) {
	respond(c, http.StatusCreated, "created", result)
}
