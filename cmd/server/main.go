package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okuznetsov/bookline/internal/config"
	"github.com/okuznetsov/bookline/internal/database"
	postgresrepo "github.com/okuznetsov/bookline/internal/repository/postgres"
	"github.com/okuznetsov/bookline/internal/service"
	"github.com/okuznetsov/bookline/internal/transport/http/handlers"
	"github.com/okuznetsov/bookline/internal/transport/http/middleware"
	"github.com/okuznetsov/bookline/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg := config.Load()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	convRepo := postgresrepo.NewConversationRepo(pool)
	msgRepo := postgresrepo.NewMessageRepo(pool)

	// Services
	messagingService := service.NewMessagingService(convRepo, msgRepo, userRepo)

	// Delivery gateway
	hub := ws.NewHub()
	if cfg.RedisURL != "" {
		relay, err := ws.NewRelay(cfg.RedisURL, hub)
		if err != nil {
			log.Fatal(err)
		}
		defer relay.Close()
		hub.SetRelay(relay)
		go relay.Run(context.Background())
		log.Println("Cross-instance relay enabled")
	}
	messagingService.SetNotifier(ws.NewHubNotifier(hub))

	// Handlers
	dmHandler := handlers.NewDMHandler(messagingService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	// Protected - Direct messages
	mux.Handle("POST /api/v1/dm", auth(http.HandlerFunc(dmHandler.SendDirect)))
	mux.Handle("GET /api/v1/dm/conversations", auth(http.HandlerFunc(dmHandler.ListConversations)))
	mux.Handle("GET /api/v1/dm/conversations/{id}", auth(http.HandlerFunc(dmHandler.GetConversation)))
	mux.Handle("GET /api/v1/dm/conversations/{id}/messages", auth(http.HandlerFunc(dmHandler.ListMessages)))
	mux.Handle("POST /api/v1/dm/conversations/{id}/messages", auth(http.HandlerFunc(dmHandler.SendMessage)))
	mux.Handle("POST /api/v1/dm/conversations/{id}/read", auth(http.HandlerFunc(dmHandler.MarkRead)))
	mux.Handle("DELETE /api/v1/dm/conversations/{id}", auth(http.HandlerFunc(dmHandler.DeleteConversation)))
	mux.Handle("PATCH /api/v1/dm/messages/{id}", auth(http.HandlerFunc(dmHandler.EditMessage)))
	mux.Handle("DELETE /api/v1/dm/messages/{id}", auth(http.HandlerFunc(dmHandler.DeleteMessage)))

	// Start server with CORS
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, middleware.CORS(mux)))
}
