package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/studyhub/internal/middleware"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/huangang/studyhub/pkg/response"
)

// RegisterValidators adds the custom binding tags used by request structs.
// notblank rejects strings that are empty after trimming.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// toAppError maps service errors onto HTTP responses.
func toAppError(err error) *response.AppError {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		if vErr.Field == "" {
			return response.NewBadRequest(vErr.Message)
		}
		return response.NewValidation(vErr.Field, vErr.Message)
	}
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return response.NewUnauthorized(err.Error())
	case errors.Is(err, services.ErrForbidden):
		return response.NewForbidden("you do not have permission to do that")
	case errors.Is(err, services.ErrNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, services.ErrStudyFull):
		return response.NewConflict(services.ErrStudyFull.Error())
	case errors.Is(err, services.ErrConflict):
		return response.NewConflict(strings.TrimPrefix(err.Error(), services.ErrConflict.Error()+": "))
	case errors.Is(err, services.ErrFileRejected):
		return response.NewBadRequest(err.Error())
	}
	return nil
}

// fail writes err. Unmapped errors are logged and answered with a generic 500.
func fail(c *gin.Context, err error) {
	if appErr := toAppError(err); appErr != nil {
		response.Error(c, appErr)
		return
	}
	logger.Error().Err(err).
		Str("request_id", c.GetString(middleware.ContextRequestID)).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	response.Error(c, err)
}

// bindJSON binds the body and answers 400 with per-field messages on failure.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		badBinding(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		badBinding(c, err)
		return false
	}
	return true
}

func badBinding(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[snake(fe.Field())] = fieldMessage(fe)
	}
	appErr := response.NewBadRequest("validation failed")
	appErr.Fields = fields
	response.Error(c, appErr)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

// snake turns a Go field name into its json name: ConfirmPassword -> confirm_password.
func snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// idParam parses a positive numeric path parameter. A malformed id is reported
// as not found, the same as an id that does not exist.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.Fail(c, http.StatusNotFound, name+" not found")
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}
