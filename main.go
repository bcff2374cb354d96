package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/auth"
	"realtime-service/internal/broadcast"
	"realtime-service/internal/bus"
	"realtime-service/internal/config"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/ratelimit"
	"realtime-service/internal/receipts"
	"realtime-service/internal/redisclient"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/typing"
	"realtime-service/internal/ws"
)

const serviceName = "realtime-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer(ctx)

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	rdb, err := redisclient.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("redis unavailable, using durable fallbacks: %v", err)
		rdb = nil
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, "audit.realtime", serviceName, cfg.Environment)

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	receiptRepo := receipts.NewRepo(database)

	registry := ws.NewRegistry(convRepo)

	var eventBus bus.EventBus
	if rdb != nil {
		redisBus := bus.NewRedisBus(rdb, cfg.EventChannel, registry)
		redisBus.Start(ctx)
		eventBus = redisBus
		log.Printf("event bus transport=redis channel=%s", cfg.EventChannel)
	} else {
		eventBus = bus.NewLocalBus(registry)
		log.Printf("event bus transport=local")
	}

	var presenceStore presence.Store
	var typingStore typing.Store
	var limiter ratelimit.Limiter
	limits := ratelimit.Limits{MessagesPerMinute: cfg.MessagesPerMinute, ConversationsPerDay: cfg.ConversationsPerDay}
	if rdb != nil {
		presenceStore = presence.NewRedisStore(rdb)
		typingStore = typing.NewRedisStore(rdb)
		limiter = ratelimit.NewRedisLimiter(rdb, limits)
	} else {
		typingStore = typing.NewPostgresStore(database, cfg.TypingTTL)
		limiter = ratelimit.NewPostgresLimiter(database, limits)
	}

	presenceTracker := presence.NewTracker(presenceStore, userRepo, convRepo, eventBus, cfg.PresenceTTL)
	typingTracker := typing.NewTracker(typingStore, userRepo, convRepo, eventBus, cfg.TypingTTL)
	broadcaster := broadcast.NewBroadcaster(eventBus, convRepo)

	tokens := auth.NewTokenVerifier(cfg.JWTSecret)
	gateway := ws.NewGateway(registry, presenceTracker, typingTracker, receiptRepo, userRepo, tokens, audit)

	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, receiptRepo, limiter, broadcaster, audit)
	conversationHandler := handlers.NewConversationHandler(convRepo, limiter, presenceTracker, typingTracker)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.POST("/conversations", authMiddleware, conversationHandler.CreateConversation)
	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/conversations/:conversation_id", authMiddleware, conversationHandler.GetConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.PostMessage)
	router.PATCH("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.POST("/messages/:message_id/delivered", authMiddleware, messageHandler.MarkDelivered)
	router.GET("/messages/:message_id/receipts", authMiddleware, messageHandler.ListReceipts)
	router.GET("/conversations/:conversation_id/typing", authMiddleware, conversationHandler.GetTypingUsers)
	router.GET("/presence", authMiddleware, conversationHandler.GetBulkPresence)
	router.GET("/rate-limit", authMiddleware, conversationHandler.GetRateLimit)

	router.GET("/ws", gateway.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
