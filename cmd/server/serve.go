package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow-sync-server/internal/handler"
	"taskflow-sync-server/internal/metadata"
	"taskflow-sync-server/internal/middleware"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ensureSchema(cmd.Context()); err != nil {
			return err
		}

		return serve(a)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(a *app) error {
	cfg := a.cfg

	wsManager := websocket.NewManager(
		a.codec,
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()
	defer wsManager.Stop()

	authService := service.NewAuthService(a.users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(a.users)
	teamService := service.NewTeamService(a.teams, a.users, a.sharedTasks)
	snapshotService := service.NewSnapshotSyncService(a.users, a.codec)
	deltaService := service.NewDeltaSyncService(
		a.changeLog,
		a.sharedTasks,
		teamService,
		metadata.NewExtractor(a.codec),
		service.DeltaSyncConfig{
			PullHorizon:     cfg.Sync.PullHorizon,
			ChangesLookback: cfg.Sync.ChangesLookback,
		},
	)
	deltaService.SetNotifier(wsManager)

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, deltaService))

	authHandler := handler.NewAuthHandler(authService, a.codec)
	userHandler := handler.NewUserHandler(userService, a.codec)
	teamHandler := handler.NewTeamHandler(teamService, a.codec)
	syncHandler := handler.NewSyncHandler(deltaService, a.codec)
	snapshotHandler := handler.NewSnapshotHandler(snapshotService, a.codec)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize)

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

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/sync/delta", syncHandler.Delta).Methods("POST", "OPTIONS")
	protected.HandleFunc("/sync/delta/changes", syncHandler.Changes).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/upload", snapshotHandler.Upload).Methods("POST", "OPTIONS")
	protected.HandleFunc("/sync/download", snapshotHandler.Download).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/status", snapshotHandler.Status).Methods("GET", "OPTIONS")

	protected.HandleFunc("/teams", teamHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/teams", teamHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/teams/{id}", teamHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/teams/{id}", teamHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/teams/{id}", teamHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/teams/{id}/members", teamHandler.Members).Methods("GET", "OPTIONS")
	protected.HandleFunc("/teams/{id}/members", teamHandler.AddMember).Methods("POST", "OPTIONS")
	protected.HandleFunc("/teams/{id}/members/{userId}", teamHandler.RemoveMember).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/teams/{id}/leave", teamHandler.Leave).Methods("POST", "OPTIONS")
	protected.HandleFunc("/teams/{id}/shared-tasks", teamHandler.SharedTasks).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := cfg.Server.Host + ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Server.Env, "ledger": cfg.Ledger.Driver}).Info("starting TaskFlow sync server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "server failed to start")
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	log.Info("server stopped gracefully")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"taskflow-sync-server"}`))
}
