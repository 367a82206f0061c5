package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"visaconnect/internal/chat"
	"visaconnect/internal/config"
	"visaconnect/internal/db"
	"visaconnect/internal/docstore"
	"visaconnect/internal/events"
	"visaconnect/internal/handlers"
	"visaconnect/internal/identity"
	"visaconnect/internal/middleware"
	"visaconnect/internal/observability"
	"visaconnect/internal/repositories"
	"visaconnect/internal/telemetry"
	"visaconnect/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	documents, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}

	publisher := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s reason=%q", events.Mode(publisher), events.NoopReason(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit_log.chat", "visaconnect", cfg.Environment)

	verifier := identity.NewClient(cfg.IdentityURL)

	conversationRepo := repositories.NewConversationRepo(documents)
	messageRepo := repositories.NewMessageRepo(documents)
	userRepo := repositories.NewUserRepo(database)
	businessRepo := repositories.NewBusinessRepo(database)

	chatService := chat.NewService(conversationRepo, messageRepo)

	hub := ws.NewHub()

	chatHandler := handlers.NewChatHandler(chatService, userRepo, hub, audit)
	userHandler := handlers.NewUserHandler(userRepo)
	businessHandler := handlers.NewBusinessHandler(businessRepo)

	conversationWS := ws.NewConversationHandler(hub, chatService, verifier)
	inboxWS := ws.NewInboxHandler(hub, verifier)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware("visaconnect"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	chatRoutes := router.Group("/api/chat", authMiddleware)
	chatRoutes.GET("/conversations", chatHandler.ListConversations)
	chatRoutes.POST("/conversations", chatHandler.StartConversation)
	chatRoutes.GET("/conversations/:conversation_id/messages", chatHandler.GetMessages)
	chatRoutes.POST("/conversations/:conversation_id/messages", chatHandler.PostMessage)
	chatRoutes.PUT("/conversations/:conversation_id/read", chatHandler.MarkRead)
	chatRoutes.GET("/unread-count", chatHandler.UnreadCount)

	userRoutes := router.Group("/api/users", authMiddleware)
	userRoutes.POST("", userHandler.Register)
	userRoutes.GET("", userHandler.List)
	userRoutes.GET("/me", userHandler.Me)
	userRoutes.GET("/:user_id", userHandler.Get)
	userRoutes.PUT("/:user_id", userHandler.Update)

	businessRoutes := router.Group("/api/businesses", authMiddleware)
	businessRoutes.GET("", businessHandler.List)
	businessRoutes.POST("", businessHandler.Create)
	businessRoutes.GET("/:business_id", businessHandler.Get)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)
	router.GET("/ws/inbox", inboxWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, chatService, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
