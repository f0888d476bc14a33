package response

import (
	"net/http"

	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/gin-gonic/gin"
)

// APIError is the body of an error response
type APIError struct {
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error response
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes an explicit status and code
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps an error chain to its AppError status and code.
// Errors without an AppError become 500 INTERNAL_ERROR without leaking their text.
func RespondAppError(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorEnvelope{
			Error: APIError{
				Message: "internal server error",
				Code:    string(apperrors.ErrCodeInternal),
			},
		})
		return
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: appErr.Message,
			Code:    string(appErr.Code),
			Details: appErr.Details,
		},
	})
}

// RespondOK writes a 200 with the payload
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondCreated writes a 201 with the payload
func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
