// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/palaver-ai/chat-platform/internal/config"
	"github.com/palaver-ai/chat-platform/internal/events"
	"github.com/palaver-ai/chat-platform/internal/handler"
	"github.com/palaver-ai/chat-platform/internal/llm"
	"github.com/palaver-ai/chat-platform/internal/middleware"
	"github.com/palaver-ai/chat-platform/internal/persist"
	"github.com/palaver-ai/chat-platform/internal/service"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
	"github.com/palaver-ai/chat-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the conversation store
	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	// Connect the turn-event audit stream; the server runs without it
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		natsClient, err = events.Connect(events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, turn events disabled", zap.Error(err))
		} else {
			defer natsClient.Close()
			publisher = events.NewPublisher(natsClient)
			if err := publisher.EnsureStream(ctx); err != nil {
				log.Warn("failed to ensure event stream", zap.Error(err))
			}
		}
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	} else {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// Background turn persister
	queue := persist.NewQueue(st, publisher, log)
	defer queue.Close()

	// Services
	conversationSvc := service.NewConversationService(st, log)
	chatSvc := service.NewChatService(st, queue, publisher, llmClient, service.ChatConfig{
		TextModel:   cfg.TextModel,
		VisionModel: cfg.VisionModel,
		MaxTokens:   cfg.MaxTokens,
	}, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(st, natsClient)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	chatHandler := handler.NewChatHandler(chatSvc, log)

	authenticator := middleware.NewJWTAuthenticator(cfg.JWTSecret)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", handler.ConversationIDHeader, "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authenticator))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", conversationHandler.Messages)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
