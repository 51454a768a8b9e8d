package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckmitra/backend/internal/handlers"
	"github.com/truckmitra/backend/internal/middleware"
	"github.com/truckmitra/backend/internal/models"
)

// RegisterRoutes wires every HTTP endpoint onto the router
func RegisterRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	webhookHandler *handlers.WebhookHandler,
	kycHandler *handlers.KYCHandler,
	vehicleHandler *handlers.VehicleHandler,
	geoHandler *handlers.GeoHandler,
	rateLimiter *middleware.RateLimiter,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway webhooks stay outside the versioned API group: no auth
	// middleware, the signature on the raw body is the authentication.
	router.POST("/webhooks/razorpay", webhookHandler.RazorpayWebhook)

	api := router.Group("/api/v1")
	api.Use(rateLimiter.IPRateLimiterMiddleware())

	auth := api.Group("/auth")
	auth.Use(rateLimiter.AuthRateLimiterMiddleware())
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/otp/request", authHandler.RequestOTP)
		auth.POST("/otp/verify", authHandler.VerifyOTP)
	}

	api.GET("/plans", subscriptionHandler.ListPlans)

	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(middleware.AuthMiddleware())
	{
		subscriptions.POST("/checkout", subscriptionHandler.Checkout)
		subscriptions.POST("/verify", subscriptionHandler.Verify)
		subscriptions.GET("/me", subscriptionHandler.CurrentSubscription)
	}

	kyc := api.Group("/kyc")
	kyc.Use(middleware.AuthMiddleware())
	{
		kyc.POST("/documents", kycHandler.SubmitDocument)
		kyc.GET("/documents", kycHandler.Documents)
	}

	vehicles := api.Group("/vehicles")
	vehicles.Use(middleware.AuthMiddleware(), middleware.RequireRole(models.UserRoleVendor, models.UserRoleAdmin))
	{
		vehicles.POST("", vehicleHandler.AddVehicle)
		vehicles.GET("", vehicleHandler.ListVehicles)
		vehicles.PATCH("/:id", vehicleHandler.UpdateVehicle)
		vehicles.DELETE("/:id", vehicleHandler.RemoveVehicle)
	}

	geo := api.Group("/geo")
	{
		geo.GET("/pincode/:pincode", geoHandler.Geocode)
		geo.GET("/distance", geoHandler.Distance)
	}
}
