// Package handlers contains the HTTP handlers and routing.
package handlers

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(handler *PaymentHandler, ginMode, serviceSecret string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check (public)
	router.GET("/health", handler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/payments/:order_id/status", handler.GetStatus)

		donations := v1.Group("/donations")
		donations.Use(ServiceAuthMiddleware(serviceSecret))
		{
			donations.POST("", handler.CreateDonation)
			donations.POST("/:order_id/resend-receipt", handler.ResendReceipt)
		}
	}

	// Gateway return and notification endpoints (public)
	payments := router.Group("/payments")
	{
		payments.GET("/phonepe/redirect", handler.PhonePeRedirect)
		payments.POST("/sbiepay/success", handler.SBIePaySuccess)
		payments.POST("/sbiepay/failure", handler.SBIePayFailure)
		payments.POST("/sbiepay/push", handler.SBIePayPush)
	}

	return router
}
