package main

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/api"
	"github.com/chatnova/backend/internal/auth"
	"github.com/chatnova/backend/internal/chat"
	"github.com/chatnova/backend/internal/config"
	"github.com/chatnova/backend/internal/llm"
	"github.com/chatnova/backend/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	var conversationStore chat.Store
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := client.Ping(ctx, nil); err != nil {
			cancel()
			logger.Fatal("failed to ping MongoDB", zap.Error(err))
		}
		cancel()

		conversationStore = store.NewMongoStore(client, cfg.MongoDatabase)
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	} else {
		conversationStore = store.NewMemoryStore()
		logger.Warn("MONGODB_URI not set, conversations will not survive a restart")
	}

	completer, err := llm.New(cfg.OpenAIBaseURL, cfg.OpenAIToken, cfg.Model, logger)
	if err != nil {
		logger.Fatal("failed to initialize completion client", zap.Error(err))
	}

	svc := chat.NewService(conversationStore, completer, logger)
	handler := api.NewHandler(svc, logger)

	authenticated := auth.Middleware([]byte(cfg.JWTSecret), logger)

	mux := http.NewServeMux()
	mux.Handle("/api/message", authenticated(http.HandlerFunc(handler.HandleMessage)))
	mux.Handle("/api/messages", authenticated(http.HandlerFunc(handler.GetMessages)))
	mux.Handle("/api/message/edit", authenticated(http.HandlerFunc(handler.EditMessage)))
	mux.Handle("/api/message/delete", authenticated(http.HandlerFunc(handler.DeleteMessage)))
	mux.Handle("/api/conversations", authenticated(http.HandlerFunc(handler.GetConversations)))
	mux.Handle("/api/conversations/delete", authenticated(http.HandlerFunc(handler.DeleteConversation)))

	// Serve the browser client
	mux.Handle("/", http.FileServer(http.Dir("web")))

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
