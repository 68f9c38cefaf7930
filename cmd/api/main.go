// Donation Payments Service
//
// This is the main entry point for the donation payment service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sukruthakeralam/donation-payments/config"
	"github.com/sukruthakeralam/donation-payments/internal/adapters/mongostore"
	"github.com/sukruthakeralam/donation-payments/internal/adapters/phonepe"
	"github.com/sukruthakeralam/donation-payments/internal/adapters/postgres"
	"github.com/sukruthakeralam/donation-payments/internal/adapters/sbiepay"
	"github.com/sukruthakeralam/donation-payments/internal/adapters/ses"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
	"github.com/sukruthakeralam/donation-payments/internal/core/service"
	"github.com/sukruthakeralam/donation-payments/internal/handlers"
)

func main() {
	log.Println("Starting Donation Payments Service...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	log.Printf("Configuration loaded: Port=%s, Store=%s, PhonePe=%t, SBIePay=%t",
		cfg.Server.Port, cfg.Database.Driver, cfg.PhonePe.Enabled(), cfg.SBIePay.Enabled())

	// Wire up dependencies (manual dependency injection)
	//
	// Infrastructure Layer
	store, closeStore, err := openStore(cfg.Database)
	if err != nil {
		log.Fatalf("Store error: %v", err)
	}
	defer closeStore()

	var phonePeGateway ports.PhonePeGateway
	if cfg.PhonePe.Enabled() {
		phonePeGateway = phonepe.NewClient(phonepe.Config{
			ClientID:      cfg.PhonePe.ClientID,
			ClientSecret:  cfg.PhonePe.ClientSecret,
			ClientVersion: cfg.PhonePe.ClientVersion,
			Endpoints:     phonepe.EndpointsFor(cfg.PhonePe.Env),
			Timeout:       cfg.PhonePe.Timeout,
		})
	}

	var sbiePayGateway ports.SBIePayGateway
	if cfg.SBIePay.Enabled() {
		client, err := sbiepay.NewClient(sbiepay.Config{
			MerchantID:    cfg.SBIePay.MerchantID,
			EncryptionKey: cfg.SBIePay.EncryptionKey,
			AggregatorID:  cfg.SBIePay.AggregatorID,
			SuccessURL:    cfg.SBIePay.SuccessURL,
			FailURL:       cfg.SBIePay.FailURL,
			GatewayURL:    cfg.SBIePay.GatewayURL,
			DVQueryURL:    cfg.SBIePay.DVQueryURL,
			Checksum:      sbiepay.Checksum(cfg.SBIePay.Checksum),
			Timeout:       cfg.SBIePay.Timeout,
		})
		if err != nil {
			log.Fatalf("SBIePay client error: %v", err)
		}
		sbiePayGateway = client
	}

	var notifier ports.Notifier
	if cfg.Notification.SenderEmail != "" {
		dispatcher, err := ses.NewFromRegion(context.Background(), cfg.Notification.AWSRegion, cfg.Notification.SenderEmail, store)
		if err != nil {
			log.Fatalf("SES error: %v", err)
		}
		notifier = dispatcher
	} else {
		log.Println("Warning: SES_SENDER_EMAIL not set, thank-you e-mails are disabled")
	}

	// Service Layer
	paymentService := service.NewPaymentService(store, phonePeGateway, sbiePayGateway, notifier, service.Settings{
		BackendDomain:          cfg.App.BackendDomain,
		FrontendDomain:         cfg.App.FrontendDomain,
		OrganizationName:       cfg.App.OrganizationName,
		ContactEmail:           cfg.App.ContactEmail,
		PhonePeExpirySeconds:   cfg.PhonePe.ExpirySeconds,
		VerifySBIePayCallbacks: cfg.SBIePay.VerifyCallbacks,
	})

	// API Layer
	handler := handlers.NewPaymentHandler(paymentService, cfg.App.FrontendDomain)
	router := handlers.SetupRouter(handler, cfg.Server.GinMode, cfg.Security.ServiceJWTSecret)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// paymentStore is a PaymentStore that can also record e-mail attempts.
type paymentStore interface {
	ports.PaymentStore
	ses.EmailLogStore
}

// openStore connects the configured store and prepares its schema.
func openStore(cfg config.DatabaseConfig) (paymentStore, func(), error) {
	switch cfg.Driver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.NewStore(client, cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to MongoDB database %s", cfg.MongoDatabase)
		return store, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("MongoDB disconnect error: %v", err)
			}
		}, nil

	default:
		db, err := postgres.Open(cfg.URL, cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Connected to PostgreSQL")
		return postgres.NewStore(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil
	}
}
