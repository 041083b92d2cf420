package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"dex-backend/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError renders the error envelope: {field: [KIND]} or {error: [KIND]}
// for validation failures, {detail: KIND} for auth failures and 500 otherwise.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var fe *types.FieldError
	if errors.As(err, &fe) {
		status := http.StatusBadRequest
		if fe.NotFound() {
			status = http.StatusNotFound
		}
		key := fe.Field
		if key == "" {
			key = "error"
		}
		c.JSON(status, gin.H{key: []string{string(fe.Kind)}})
		return
	}

	var ae *types.AuthError
	if errors.As(err, &ae) {
		c.JSON(http.StatusForbidden, gin.H{"detail": string(ae.Kind)})
		return
	}

	logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
}

// bindJSON decodes the body into req. An empty body decodes as {} so the
// missing-field checks report the first absent field.
func bindJSON(c *gin.Context, req interface{}) error {
	err := c.ShouldBindJSON(req)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return types.NewCrossFieldError(types.ErrMalformed)
		}
		// decimals travel as strings; a JSON number in their place is a decimal error
		if typeErr.Value == "number" && typeErr.Type != nil && typeErr.Type.Kind() == reflect.String {
			return types.NewFieldError(field, types.ErrWrongDecimal)
		}
		return types.NewFieldError(field, types.ErrWrongType)
	}
	return types.NewCrossFieldError(types.ErrMalformed)
}

// queryError maps a query binding failure of a numeric filter
func queryError(field string) error {
	return types.NewFieldError(field, types.ErrWrongType)
}
