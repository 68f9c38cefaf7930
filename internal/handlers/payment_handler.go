// Package handlers contains the HTTP handlers for the payment service.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/service"
)

// PaymentService is what the handlers need from the service layer.
type PaymentService interface {
	StartDonation(ctx context.Context, req domain.DonationRequest) (*domain.CheckoutResponse, error)
	RefreshStatus(ctx context.Context, orderID string) (*domain.PaymentStatusView, error)
	HandleSBIePayCallback(ctx context.Context, source domain.CallbackSource, encrypted string) *service.CallbackOutcome
	ResendThankYou(ctx context.Context, orderID string) (*domain.DeliveryResult, error)
}

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service        PaymentService
	frontendDomain string
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(svc PaymentService, frontendDomain string) *PaymentHandler {
	return &PaymentHandler{service: svc, frontendDomain: frontendDomain}
}

// CreateDonation handles POST /api/v1/donations
// Records the donation and creates its payment with the chosen gateway.
func (h *PaymentHandler) CreateDonation(c *gin.Context) {
	var req domain.DonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
			"code":    "VALIDATION_ERROR",
		})
		return
	}

	response, err := h.service.StartDonation(c.Request.Context(), req)
	if err != nil {
		log.Printf("CreateDonation error: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus handles GET /api/v1/payments/:order_id/status
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	view, err := h.service.RefreshStatus(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		log.Printf("GetStatus error for order %s: %v", c.Param("order_id"), err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// ResendReceipt handles POST /api/v1/donations/:order_id/resend-receipt
func (h *PaymentHandler) ResendReceipt(c *gin.Context) {
	res, err := h.service.ResendThankYou(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		log.Printf("ResendReceipt error for order %s: %v", c.Param("order_id"), err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// PhonePeRedirect handles GET /payments/phonepe/redirect
// The donor's browser lands here after checkout; the status is refreshed before
// sending them on to the thank-you page.
func (h *PaymentHandler) PhonePeRedirect(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID != "" {
		if _, err := h.service.RefreshStatus(c.Request.Context(), orderID); err != nil {
			log.Printf("PhonePe redirect refresh failed for order %s: %v", orderID, err)
		}
	}
	c.Redirect(http.StatusSeeOther, h.thankYouURL(orderID))
}

// SBIePaySuccess handles POST /payments/sbiepay/success
func (h *PaymentHandler) SBIePaySuccess(c *gin.Context) {
	h.sbiepayRedirect(c, domain.CallbackRedirectSuccess)
}

// SBIePayFailure handles POST /payments/sbiepay/failure
func (h *PaymentHandler) SBIePayFailure(c *gin.Context) {
	h.sbiepayRedirect(c, domain.CallbackRedirectFailure)
}

func (h *PaymentHandler) sbiepayRedirect(c *gin.Context, source domain.CallbackSource) {
	out := h.service.HandleSBIePayCallback(c.Request.Context(), source, c.PostForm("encData"))
	c.Redirect(http.StatusSeeOther, h.thankYouURL(out.OrderID))
}

// SBIePayPush handles POST /payments/sbiepay/push
// Server-to-server notifications always get the same acknowledgement; the outcome
// is only visible through the status endpoint.
func (h *PaymentHandler) SBIePayPush(c *gin.Context) {
	h.service.HandleSBIePayCallback(c.Request.Context(), domain.CallbackPush, c.PostForm("pushRespData"))
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// Health handles GET /health
func (h *PaymentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "donation-payments",
		"version": "1.0.0",
	})
}

func (h *PaymentHandler) thankYouURL(orderID string) string {
	u := h.frontendDomain + "/thankyou"
	if orderID != "" {
		u += "?order_id=" + url.QueryEscape(orderID)
	}
	return u
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "Internal server error"

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedProvider), domain.IsCodecError(err):
		status = http.StatusBadRequest
	case domain.IsTransient(err):
		status = http.StatusBadGateway
	}

	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) {
		code = svcErr.Code
		if status != http.StatusInternalServerError {
			message = svcErr.Message
		}
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
