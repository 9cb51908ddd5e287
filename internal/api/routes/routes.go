package routes

import (
	"time"

	"chat-relay/internal/api/handlers"
	"chat-relay/internal/api/middleware"
	"chat-relay/internal/chat"
	"chat-relay/internal/service"
	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Router struct {
	engine       *gin.Engine
	authHandler  *handlers.AuthHandler
	roomsHandler *handlers.RoomsHandler
	wsHandler    *handlers.WSHandler
	authMW       *middleware.AuthMiddleware
	rateLimitMW  *middleware.RateLimitMiddleware
}

func NewRouter(
	hub *websocket.Hub,
	gateway *chat.Gateway,
	rooms *chat.RoomDirectory,
	userService *service.UserService,
	redisService *service.RedisService,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogAPI())

	return &Router{
		engine:       engine,
		authHandler:  handlers.NewAuthHandler(userService),
		roomsHandler: handlers.NewRoomsHandler(rooms),
		wsHandler:    handlers.NewWSHandler(hub, gateway),
		authMW:       middleware.NewAuthMiddleware(userService),
		rateLimitMW:  middleware.NewRateLimitMiddleware(redisService),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Use(r.rateLimitMW.RateLimitIP(20, time.Minute))
	{
		auth.POST("/register", r.authHandler.Register)
		auth.POST("/login", r.authHandler.Login)
	}

	api.GET("/ws",
		r.rateLimitMW.RateLimitIP(10, time.Minute),
		r.authMW.WSAuth(),
		r.wsHandler.HandleWebSocket,
	)

	api.GET("/rooms",
		r.authMW.RequireAuth(),
		r.rateLimitMW.RateLimitIP(60, time.Minute),
		r.roomsHandler.ListRooms,
	)
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
