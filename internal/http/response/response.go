package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

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

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// Fail writes err with the status and code its kind maps to. Internal
// failures are logged by the request logger and surface a generic message.
func Fail(c *gin.Context, err error) {
	status, code, msg := Classify(err)
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// Classify maps service errors onto HTTP status, error code and client message.
func Classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "unknown error"
	}
	if ae, ok := apierr.As(err); ok {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := ae.Code
		if code == "" {
			code = "error"
		}
		return status, code, ae.Error()
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		msg := aggErr.Message
		if msg == "" {
			msg = string(aggErr.Code)
		}
		switch aggErr.Code {
		case domainagg.CodeValidation:
			return http.StatusBadRequest, string(aggErr.Code), msg
		case domainagg.CodeNotFound:
			return http.StatusNotFound, string(aggErr.Code), msg
		case domainagg.CodeForbidden:
			return http.StatusForbidden, string(aggErr.Code), msg
		case domainagg.CodeConflict, domainagg.CodePreconditionFailed, domainagg.CodeInvariantViolation:
			return http.StatusConflict, string(aggErr.Code), msg
		case domainagg.CodeRetryable:
			return http.StatusServiceUnavailable, string(aggErr.Code), "temporarily unavailable, retry the request"
		}
	}
	return http.StatusInternalServerError, "internal", "server error"
}
