package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/middleware"
	"cuadra/internal/services"
	appvalidator "cuadra/internal/validator"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// bindError turns a binding failure into an INVALID_INPUT error naming the
// first offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.Validation(fe.Field(), "failed on the '"+fe.Tag()+"' rule")
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// parsePeriod reads the :year and :month path parameters.
func parsePeriod(c *gin.Context) (calendar.Period, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return calendar.Period{}, apperrors.Validation("year", "year must be a number")
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return calendar.Period{}, apperrors.Validation("month", "month must be a number")
	}
	p := calendar.NewPeriod(year, month)
	if err := p.Validate(); err != nil {
		return calendar.Period{}, apperrors.Validation("period", err.Error())
	}
	return p, nil
}

// parseDate parses an optional civil date. Nil and empty strings yield nil.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(appvalidator.DateLayout, *value)
	if err != nil {
		return nil, apperrors.Validation(field, "date must use the YYYY-MM-DD format")
	}
	return &t, nil
}

// readOptions builds the memo options of a read from If-None-Match and the
// force query parameter.
func readOptions(c *gin.Context) cache.ReadOptions {
	var opts cache.ReadOptions
	if raw := strings.Trim(strings.TrimPrefix(c.GetHeader("If-None-Match"), "W/"), `"`); raw != "" {
		if tag, ok := cache.ParseTag(raw); ok {
			opts.LastSeen = &tag
		}
	}
	opts.Force, _ = strconv.ParseBool(c.Query("force"))
	return opts
}

// respondVersioned writes a versioned read with its ETag, or 304 when the
// client already holds the current version.
func respondVersioned[T any](c *gin.Context, v *services.Versioned[T]) {
	c.Header("ETag", strconv.Quote(v.Tag().String()))
	if v.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, v)
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.RenderError(c, err)
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
