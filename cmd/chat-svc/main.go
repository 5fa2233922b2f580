package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"gochat/internal/chat/handler"
	"gochat/internal/common"
	"gochat/internal/wire"
)

func main() {
	log.Println("Starting Chat Service...")

	app, cleanup, err := wire.InitializeApplication()
	if err != nil {
		log.Fatalf("Failed to initialize chat service: %v", err)
	}
	defer cleanup()

	router := setupRouter(app)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", app.Config.Server.Host, app.Config.Server.ChatServicePort),
		Handler:        router,
		ReadTimeout:    time.Duration(app.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(app.Config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		log.Printf("✅ Chat Service running on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down Chat Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Chat Service stopped")
}

// setupRouter configures HTTP routes
func setupRouter(app *wire.Application) *mux.Router {
	router := mux.NewRouter()

	router.Use(handler.CORSMiddleware)
	router.Use(handler.LoggingMiddleware(app.Metrics))

	router.HandleFunc("/health", healthCheckHandler(app)).Methods(http.MethodGet)
	router.Handle("/metrics", app.Metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", app.Hub.ServeWS).Methods(http.MethodGet)

	// Attachments are uploaded before the message that references them
	app.Media.RegisterRoutes(router)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(common.AuthMiddleware([]byte(app.Config.Auth.JWTSecret)))
	app.Handler.RegisterRoutes(api)

	return router
}

func healthCheckHandler(app *wire.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":      "healthy",
			"service":     "gochat-chat",
			"connections": app.Hub.ConnectionCount(),
		}

		if app.Messages != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			count, err := app.Messages.Count(ctx)
			if err != nil {
				log.Printf("Health check: message store unavailable: %v", err)
				body["status"] = "degraded"
				common.WriteJSON(w, http.StatusServiceUnavailable, body)
				return
			}
			body["messages"] = count
		}

		common.WriteJSON(w, http.StatusOK, body)
	}
}
