package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/middleware"
)

// statusFor maps a service error to its HTTP status, API error code and client message.
func statusFor(err error) (int, string, string, interface{}) {
	var (
		validationErr *domain.ValidationError
		matrixErr     *domain.MatrixValidationError
		sumErr        *domain.ProbabilitySumError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, domain.ErrValidation, validationErr.Error(), validationErr
	case errors.As(err, &matrixErr):
		return http.StatusUnprocessableEntity, domain.ErrMatrixInvalid, "LR matrix failed validation", matrixErr
	case errors.As(err, &sumErr):
		return http.StatusUnprocessableEntity, domain.ErrProbabilitySum, sumErr.Error(), sumErr
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, domain.ErrSessionExpired, "Session not found or expired", nil
	case errors.Is(err, domain.ErrSessionConflict):
		return http.StatusConflict, domain.ErrSessionExpired, "Session was modified concurrently, retry the edit", nil
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFoundCode, err.Error(), nil
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway, domain.ErrGeneration, "Case generation failed", nil
	default:
		return http.StatusInternalServerError, domain.ErrInternalServer, "Internal server error", nil
	}
}

// respondError writes err as an APIError and logs server-side failures.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, message, details := statusFor(err)
	requestID := middleware.RequestID(c)

	entry := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID))
}

// badRequest rejects malformed input before it reaches a service.
func (s *Server) badRequest(c *gin.Context, message string, details interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrInvalidInput, message, details, middleware.RequestID(c)))
}
