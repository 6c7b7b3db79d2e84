// server/internal/api/routes/routes.go
package routes

import (
	"net/http"
	"time"

	"krishisetu-api-server/config"
	"krishisetu-api-server/internal/api/handlers"
	"krishisetu-api-server/internal/api/middleware"
	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/models"
	"krishisetu-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the components the router hands to its handlers.
// Uploader may be nil when S3 is not configured.
type Dependencies struct {
	Config   config.Config
	Ledger   *ledger.Ledger
	Users    database.UserRepository
	Hub      *socket.Hub
	Uploader handlers.ImageUploader
}

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(deps.Config.Server.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = deps.Config.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	secret := []byte(deps.Config.JWT.Secret)
	facilityHandler := &handlers.FacilityHandler{Ledger: deps.Ledger, Users: deps.Users}
	if deps.Hub != nil {
		facilityHandler.Hub = deps.Hub
	}
	if deps.Uploader != nil {
		facilityHandler.Uploader = deps.Uploader
	}
	userHandler := &handlers.UserHandler{Users: deps.Users, JWTSecret: secret, TokenTTL: deps.Config.JWT.Expiration}
	limiter := middleware.NewRateLimiter(deps.Config.RateLimit.PerMinute, deps.Config.RateLimit.Burst)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		if deps.Hub != nil {
			wsHandler := &handlers.WebSocketHandler{Hub: deps.Hub, JWTSecret: secret}
			api.GET("/ws", wsHandler.ServeWs)
		}

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", userHandler.Register)
			authRoutes.POST("/login", userHandler.Login)
			authRoutes.GET("/me", middleware.Authenticate(secret), userHandler.Me)
		}

		coldStorage := api.Group("/coldstorage")
		{
			// === CÁC ROUTE KHÔNG YÊU CẦU XÁC THỰC ===
			coldStorage.GET("", facilityHandler.GetAllFacilities)
			coldStorage.GET("/:id", facilityHandler.GetFacilityByID)

			// === Người dùng đã đăng nhập ===
			authed := coldStorage.Group("")
			authed.Use(middleware.Authenticate(secret))
			{
				authed.POST("/:id/book", limiter.Middleware(), facilityHandler.CreateBooking)
				authed.GET("/user/bookings", facilityHandler.GetMyBookings)
				authed.POST("/:id/rate", facilityHandler.RateFacility)
			}

			// === Chủ kho lạnh ===
			owner := coldStorage.Group("")
			owner.Use(middleware.Authenticate(secret), middleware.Authorize(models.RoleColdStorage, models.RoleAdmin))
			{
				owner.POST("", facilityHandler.CreateFacility)
				owner.GET("/owner/my-facilities", facilityHandler.GetMyFacilities)
				owner.PUT("/:id", facilityHandler.UpdateFacility)
				owner.DELETE("/:id", facilityHandler.DeleteFacility)
				owner.PUT("/:id/booking/:bookingId", facilityHandler.UpdateBookingStatus)
				owner.GET("/:id/bookings", facilityHandler.GetFacilityBookings)
				owner.GET("/:id/bookings/export", facilityHandler.ExportFacilityBookings)
				owner.POST("/:id/images", facilityHandler.UploadImage)
			}
		}
	}

	return router
}
