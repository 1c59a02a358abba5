package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

var kindStatus = map[models.ErrorKind]int{
	models.KindNotFound:                http.StatusNotFound,
	models.KindValidation:              http.StatusBadRequest,
	models.KindReasonTooShort:          http.StatusBadRequest,
	models.KindInvalidUnit:             http.StatusBadRequest,
	models.KindInvalidStatusTransition: http.StatusConflict,
	models.KindAlreadyDiscarded:        http.StatusConflict,
	models.KindAnimalNotSellable:       http.StatusConflict,
	models.KindInsufficientQuantity:    http.StatusConflict,
	models.KindAlertNotPending:         http.StatusConflict,
	models.KindConcurrentModification:  http.StatusConflict,
	models.KindAnimalHasHistory:        http.StatusConflict,
	models.KindSlaughterUnsupported:    http.StatusUnprocessableEntity,
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind models.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// writeError renders err as {"error": {"kind", "message"}}. Non-domain errors are
// logged and hidden behind a generic message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var de *models.Error
	if errors.As(err, &de) {
		c.JSON(StatusFor(de.Kind), gin.H{"error": errorBody{Kind: de.Kind, Message: de.Message}})
		return
	}

	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Kind: "Internal", Message: "internal server error"}})
}

// badRequest reports a malformed body or query parameter.
func badRequest(c *gin.Context, format string, args ...any) {
	de := models.Invalid(format, args...)
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Kind: de.Kind, Message: de.Message}})
}

// bindOptionalJSON binds the body into obj and accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type Date struct{ time.Time }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Ptr returns nil for an absent date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
