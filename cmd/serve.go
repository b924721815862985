package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/missionops/internal/api/http"
	"github.com/immxrtalbeast/missionops/internal/realtime"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/leandro-lugaresi/hub"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and realtime gateway",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.JWTSecret == "" {
		secret, err := devSecret()
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = secret
		log.Warn("auth.jwt_secret is empty, using a random secret for this process")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := openStore(connectCtx, cfg.Storage, true, log)
	cancel()
	if err != nil {
		log.Error("failed to open storage", sl.Err(err))
		return err
	}

	clk := clock.New()
	bus := hub.New()

	auth := service.NewAuthService(store.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Leeway, clk, log)
	users := service.NewUserService(store.Users, log)
	missions := service.NewMissionService(store.Users, store.Missions, store.Chat, log)
	chat := service.NewChatService(store.Users, store.Chat, bus, clk, log)
	attendance := service.NewAttendanceService(store.Users, store.Attendance, service.NewSessionRegistry(), bus, clk,
		service.AttendanceOptions{
			Window:            cfg.Attendance.Window,
			CodeLength:        cfg.Attendance.CodeLength,
			Location:          cfg.Attendance.Location(),
			ExposeCode:        cfg.Attendance.ExposeCode,
			SweepRate:         cfg.Attendance.SweepRate,
			MaxSubmitAttempts: cfg.Attendance.MaxSubmitAttempts,
		}, log)

	manager := realtime.NewManager(bus, log)
	manager.Start()
	dispatcher := realtime.NewDispatcher(attendance, chat, manager, log)
	gateway := realtime.NewHandler(ctx, auth, manager, dispatcher, realtime.Options{
		SendQueue:       cfg.Realtime.SendQueue,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		PongWait:        cfg.Realtime.PongWait,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		CookieName:      cfg.Auth.CookieName,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, log)

	router := httpapi.SetupRouter(httpapi.RouterDeps{
		Auth:           auth,
		CookieName:     cfg.Auth.CookieName,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Users:          httpapi.NewUserController(users, auth),
		Missions:       httpapi.NewMissionController(missions, chat),
		Attendance:     httpapi.NewAttendanceController(attendance, clk, cfg.Attendance.Location()),
		Realtime:       gateway,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error("http server stopped", sl.Err(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()

	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", sl.Err(err))
	}
	// hijacked websocket connections outlive srv.Shutdown
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		log.Error("realtime shutdown", sl.Err(err))
	}
	attendance.Close()
	manager.Close()
	bus.Close()
	if err := store.Close(shutdownCtx); err != nil {
		log.Error("storage close", sl.Err(err))
	}

	log.Info("stopped")
	return runErr
}
