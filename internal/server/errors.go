package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.uber.org/zap"
)

// ErrNotFound is the generic not-found surface error.
var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

// AbortWithError writes the error response for any error bubbling out of a
// handler, translating domain errors to HTTP statuses.
func (s *Server) AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("unhandled request error", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": publicMessage(status, err),
	}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found"
	case errors.Is(err, invoicedomain.ErrInvalidInvoiceID),
		errors.Is(err, invoicedomain.ErrInvalidName),
		errors.Is(err, invoicedomain.ErrInvalidEmail),
		errors.Is(err, invoicedomain.ErrMissingLineItems),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidUnitAmount),
		errors.Is(err, invoicedomain.ErrAmountTooLarge),
		errors.Is(err, invoicedomain.ErrInvalidDateRange),
		errors.Is(err, invoicedomain.ErrInvalidStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, invoicedomain.ErrInvoiceAlreadyPaid),
		errors.Is(err, invoicedomain.ErrStatusConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, invoicedomain.ErrEmailSendFailed):
		return http.StatusBadGateway, "email_send_failed"
	case errors.Is(err, paymentdomain.ErrGateway),
		errors.Is(err, paymentdomain.ErrSessionNotFound):
		return http.StatusBadGateway, "payment_gateway_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "an internal error occurred"
	}
	return err.Error()
}
