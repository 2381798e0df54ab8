package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondKindError reports a classified failure; kind lets clients tell a
// slot conflict or stock shortage apart from a generic error.
func RespondKindError(c *gin.Context, code int, kind, message string, details interface{}) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: message,
		Kind:    kind,
		Details: details,
	})
}
