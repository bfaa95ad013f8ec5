package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbor-server/internal/config"
	"arbor-server/internal/handler"
	"arbor-server/internal/middleware"
	"arbor-server/internal/push"
	"arbor-server/internal/repository"
	"arbor-server/internal/scheduler"
	"arbor-server/internal/service"
	"arbor-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg)

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to CouchDB")
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check database existence")
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatal().Err(err).Msg("failed to create database")
		}
		log.Info().Str("database", cfg.Database.Name).Msg("created database")
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	treeRepo := repository.NewTreeRepository(client, cfg.Database.Name)
	subscriptionRepo := repository.NewSubscriptionRepository(client, cfg.Database.Name)

	// WebSocket relay
	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler())
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	treeService := service.NewTreeService(treeRepo, wsManager)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo)

	pushSender := push.NewWebhookSender(subscriptionRepo, cfg.Push.Timeout)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(treeRepo, pushSender, cfg.Scheduler.Interval)
		go sched.Run(schedCtx)
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	treeHandler := handler.NewTreeHandler(treeService)
	nodeHandler := handler.NewNodeHandler(treeService)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/tree", treeHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/tree", treeHandler.Replace).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/nodes", nodeHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/nodes/{id}", nodeHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/nodes/{id}", nodeHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/nodes/{id}", nodeHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/nodes/{id}/move", nodeHandler.Move).Methods("POST", "OPTIONS")
	protected.HandleFunc("/nodes/{id}/snooze", nodeHandler.Snooze).Methods("POST", "OPTIONS")

	protected.HandleFunc("/push/subscriptions", subscriptionHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/push/subscriptions", subscriptionHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/push/subscriptions/{id}", subscriptionHandler.Delete).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("starting arbor server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Let an in-flight scheduler tick finish its current user before exit.
	stopScheduler()
	if sched != nil {
		<-sched.Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Server.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"arbor-server"}`))
}
