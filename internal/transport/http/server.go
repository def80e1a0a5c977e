package http

import (
	"github.com/gin-gonic/gin"

	"zeus-insurance/internal/bootstrap"
	"zeus-insurance/internal/transport/http/handler"
	"zeus-insurance/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, app)
	router.GET("/health", healthHandler.Health)
	router.GET("/healthz", healthHandler.Check)

	chatHandler := handler.NewChatHandler(app.Chat)
	orderHandler := handler.NewOrderHandler(app.Orders)
	authHandler := handler.NewAuthHandler(app.Auth)

	api := router.Group("/api")
	api.POST("/chat", chatHandler.Chat)
	api.POST("/chat/stream", chatHandler.Stream)
	api.GET("/sessions/:session_id/messages", chatHandler.GetHistory)
	api.GET("/orders/:order_number", orderHandler.GetStatus)

	admin := api.Group("/admin")
	admin.POST("/login", authHandler.Login)
	secured := admin.Group("")
	secured.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	secured.GET("/me", authHandler.Me)
	secured.POST("/orders/:order_number/payment", orderHandler.UpdatePayment)

	return router
}
