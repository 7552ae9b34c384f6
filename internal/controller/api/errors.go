package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// Ошибки валидации называют поля так же, как JSON
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Field   string      `json:"field,omitempty"`
	Current *int        `json:"current,omitempty"`
	Max     *int        `json:"max,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

const (
	CodeNotFound          = "NotFound"
	CodeUnauthenticated   = "Unauthenticated"
	CodeNotAuthorized     = "NotAuthorized"
	CodeLimitExceeded     = "LimitExceeded"
	CodeValidation        = "ValidationError"
	CodeConflict          = "Conflict"
	CodeInvalidTransition = "InvalidTransition"
	CodeUnknown           = "UnknownError"
)

// respondError maps service errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		limitErr *apperrors.LimitExceededError
		validErr *apperrors.ValidationError
		custom   *apperrors.CustomError
	)

	switch {
	case errors.As(err, &limitErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   limitErr.Error(),
			Code:    CodeLimitExceeded,
			Current: &limitErr.Current,
			Max:     &limitErr.Max,
		})
	case errors.As(err, &validErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error: validErr.Message,
			Code:  CodeValidation,
			Field: validErr.Field,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: apperrors.Message(err), Code: CodeNotFound})
	case errors.Is(err, apperrors.ErrUnauthenticated):
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: apperrors.Message(err), Code: CodeUnauthenticated})
	case apperrors.Is(err, apperrors.ErrNotAuthorized, apperrors.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: apperrors.Message(err), Code: CodeNotAuthorized})
	case errors.Is(err, apperrors.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: apperrors.Message(err), Code: CodeConflict})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: apperrors.Message(err), Code: CodeInvalidTransition})
	default:
		h.logger.Error("Request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		body := ErrorResponse{Error: "internal error", Code: CodeUnknown}
		if errors.As(err, &custom) && custom.Details != nil {
			body.Details = custom.Details
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}

// respondBindError отвечает 400 на некорректное тело запроса
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error: formatValidationError(fe),
			Code:  CodeValidation,
			Field: fe.Field(),
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request body",
		Code:    CodeValidation,
		Details: err.Error(),
	})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fe.Field() + " validation failed: " + fe.Tag()
	}
}
