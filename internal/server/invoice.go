package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"github.com/smallbiznis/paylink/pkg/db/pagination"
)

type createLineItemRequest struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
}

type createInvoiceRequest struct {
	CustomerName string                  `json:"customer_name"`
	Email        string                  `json:"email"`
	Address      *string                 `json:"address"`
	Currency     string                  `json:"currency"`
	DueDate      *string                 `json:"due_date"`
	Metadata     map[string]any          `json:"metadata"`
	LineItems    []createLineItemRequest `json:"line_items"`
}

// CreateInvoice godoc
// @Summary      Create a guest invoice
// @Description  Creates an invoice for a customer without an account and emails a payment link.
// @Tags         non-user-invoices
// @Accept       json
// @Produce      json
// @Param        request body createInvoiceRequest true "invoice"
// @Success      201 {object} invoicedomain.CreateInvoiceResponse
// @Router       /non-user-invoices [post]
func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.AbortWithError(c, invalidRequestError())
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		parsed, err := parseDate(*req.DueDate)
		if err != nil {
			s.AbortWithError(c, newValidationError("due_date", "invalid_date", "due_date must be YYYY-MM-DD or RFC3339"))
			return
		}
		dueDate = &parsed
	}

	items := make([]invoicedomain.LineItemInput, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, invoicedomain.LineItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitAmount:  invoicedomain.MinorUnits(item.UnitAmount),
		})
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Address:      req.Address,
		Currency:     req.Currency,
		LineItems:    items,
		DueDate:      dueDate,
		Metadata:     req.Metadata,
	})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// ListInvoices godoc
// @Summary      List guest invoices
// @Tags         non-user-invoices
// @Produce      json
// @Param        page query int false "page"
// @Param        limit query int false "limit"
// @Param        status query string false "status filter"
// @Param        date_from query string false "inclusive start date"
// @Param        date_to query string false "inclusive end date"
// @Param        search query string false "matches name, email or number"
// @Success      200 {object} invoicedomain.ListInvoiceResponse
// @Router       /non-user-invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		s.AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		Pagination: page,
		Status:     invoicedomain.InvoiceStatus(strings.TrimSpace(c.Query("status"))),
		Search:     c.Query("search"),
	}

	if raw := strings.TrimSpace(c.Query("date_from")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			s.AbortWithError(c, newValidationError("date_from", "invalid_date", "date_from must be YYYY-MM-DD or RFC3339"))
			return
		}
		req.DateFrom = &parsed
	}
	if raw := strings.TrimSpace(c.Query("date_to")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			s.AbortWithError(c, newValidationError("date_to", "invalid_date", "date_to must be YYYY-MM-DD or RFC3339"))
			return
		}
		req.DateTo = &parsed
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetInvoice godoc
// @Summary      Fetch one guest invoice
// @Tags         non-user-invoices
// @Produce      json
// @Param        id path string true "invoice id"
// @Success      200 {object} invoicedomain.InvoiceView
// @Router       /non-user-invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	view, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// SendInvoiceEmail godoc
// @Summary      Re-send the payment email
// @Description  Issues a fresh checkout session and emails the payment link again.
// @Tags         non-user-invoices
// @Produce      json
// @Param        id path string true "invoice id"
// @Success      200 {object} invoicedomain.SendResult
// @Router       /non-user-invoices/{id}/send-email [post]
func (s *Server) SendInvoiceEmail(c *gin.Context) {
	result, err := s.invoiceSvc.SendPaymentEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateInvoiceStatus godoc
// @Summary      Apply an administrative status transition
// @Description  Only cancelled and unpaid can be set by hand; paid is owned by payment reconciliation.
// @Tags         non-user-invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "invoice id"
// @Param        request body updateStatusRequest true "target status"
// @Success      200 {object} invoicedomain.InvoiceView
// @Router       /non-user-invoices/{id}/status [patch]
func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.AbortWithError(c, invalidRequestError())
		return
	}

	status := invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	view, err := s.invoiceSvc.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}
