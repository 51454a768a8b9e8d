package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/truckmitra/backend/internal/config"
	"github.com/truckmitra/backend/internal/database"
	"github.com/truckmitra/backend/internal/handlers"
	"github.com/truckmitra/backend/internal/jobs"
	"github.com/truckmitra/backend/internal/middleware"
	"github.com/truckmitra/backend/internal/queue"
	"github.com/truckmitra/backend/internal/routes"
	"github.com/truckmitra/backend/internal/services/fleet"
	"github.com/truckmitra/backend/internal/services/geo"
	"github.com/truckmitra/backend/internal/services/kyc"
	"github.com/truckmitra/backend/internal/services/onboarding"
	"github.com/truckmitra/backend/internal/services/payment/providers/razorpay"
	"github.com/truckmitra/backend/internal/services/sms"
	"github.com/truckmitra/backend/internal/services/subscription"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	jobQueue := queue.NewQueue(redisClient)

	// Gateway client and billing core
	gatewayClient := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		BaseURL:       cfg.Razorpay.BaseURL,
	})
	store := subscription.NewStore(db)
	checkoutService := subscription.NewCheckoutService(store, gatewayClient)
	notifier := queue.NewSubscriptionNotifier(jobQueue)
	reconciler := subscription.NewReconciler(store, gatewayClient, notifier)

	// Supporting services
	onboardingService := onboarding.NewService(db, redisClient, jobQueue)
	kycService := kyc.NewService(db, kyc.NewFormatVerifier())
	fleetService := fleet.NewService(db)
	geoService := geo.NewService(geo.NewHTTPGeocoder(cfg.Maps.APIKey, cfg.Maps.BaseURL), redisClient)

	// Notification workers
	smsSender := sms.NewHTTPSender(cfg.SMS)
	smsWorker := queue.NewWorker(jobQueue, queue.JobTypeSendSMS, queue.SendSMSHandler(smsSender), 2)
	smsWorker.Start()
	notifyWorker := queue.NewWorker(jobQueue, queue.JobTypeNotifySubscriptionEvent, queue.NotifySubscriptionEventHandler(db, jobQueue), 1)
	notifyWorker.Start()

	// Handlers
	authHandler := handlers.NewAuthHandler(onboardingService)
	subscriptionHandler := handlers.NewSubscriptionHandler(db, checkoutService)
	webhookHandler := handlers.NewWebhookHandler(reconciler)
	kycHandler := handlers.NewKYCHandler(kycService)
	vehicleHandler := handlers.NewVehicleHandler(fleetService)
	geoHandler := handlers.NewGeoHandler(geoService)

	rateLimiter := middleware.NewRateLimiter(20, 10, 40, 5)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(router, authHandler, subscriptionHandler, webhookHandler, kycHandler, vehicleHandler, geoHandler, rateLimiter)

	scheduler, err := jobs.ScheduleAllJobs(store)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	srv := startServer(router, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	notifyWorker.Stop()
	smsWorker.Stop()
	rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", port)
	return srv
}
