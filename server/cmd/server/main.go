package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/taskhub/realtime/server/internal/api"
	"github.com/taskhub/realtime/server/internal/auth"
	"github.com/taskhub/realtime/server/internal/config"
	"github.com/taskhub/realtime/server/internal/metrics"
	"github.com/taskhub/realtime/server/internal/origin"
	"github.com/taskhub/realtime/server/internal/probe"
	"github.com/taskhub/realtime/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.String("config", "", "path to YAML config file (optional; env vars override it)")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pflag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to load env file", "path", *envFile, "err", err)
			os.Exit(1)
		}
		slog.Debug("no env file found, using environment variables", "path", *envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	srvCfg := cfg.Server
	level.Set(srvCfg.SlogLevel())

	slog.Info("realtime-server starting",
		"port", srvCfg.Port,
		"path", srvCfg.Path,
		"grpc_port", srvCfg.GRPCPort,
		"allowed_origins", srvCfg.AllowedOrigins,
		"log_level", srvCfg.LogLevel,
	)
	if len(srvCfg.AllowedOrigins) == 0 {
		slog.Warn("no allowed origins configured; browser connections will be rejected")
	}
	slog.Warn("room membership is held in process memory; run a single instance, " +
		"events emitted on one instance never reach sockets on another")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.New()
	allow := origin.New(srvCfg.AllowedOrigins)

	verifier := auth.NewVerifier(
		srvCfg.Auth.JWT.Secret(),
		srvCfg.Auth.JWT.Audience,
		srvCfg.Auth.JWT.Issuer,
		srvCfg.Auth.JWT.Leeway,
	)

	hub := ws.New(verifier, ws.Options{
		HandshakeTimeout: srvCfg.Handshake.Timeout,
		SendBuffer:       srvCfg.Socket.SendBuffer,
		PingPeriod:       srvCfg.Socket.PingPeriod,
		PongWait:         srvCfg.Socket.PongWait,
		CheckOrigin:      allow.CheckOrigin,
		Metrics:          reg,
	})
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	mux := http.NewServeMux()
	mux.Handle(srvCfg.Path, hub)
	mux.Handle("/", api.New(hub, api.Options{
		EmitSecret:   srvCfg.Auth.Emit.Secret(),
		MaxBodyBytes: srvCfg.Auth.Emit.MaxBodyBytes,
		Metrics:      reg,
	}))

	// Origins and log level can change without a restart.
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				allow.Update(next.Server.AllowedOrigins)
				level.Set(next.Server.SlogLevel())
				slog.Info("applied config reload",
					"allowed_origins", allow.Origins(),
					"log_level", next.Server.LogLevel)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	var prb *probe.Probe
	if srvCfg.GRPCPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", srvCfg.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port", "port", srvCfg.GRPCPort, "err", err)
			os.Exit(1)
		}
		prb = probe.New()
		go func() {
			slog.Info("gRPC health probe listening", "port", srvCfg.GRPCPort)
			if err := prb.Serve(lis); err != nil {
				slog.Error("gRPC health probe stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srvCfg.Port),
		Handler:           allow.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", srvCfg.Port, "socket_path", srvCfg.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("realtime-server shutting down")

	if prb != nil {
		prb.SetServing(false)
	}
	<-hubDone

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "err", err)
	}
	if prb != nil {
		prb.Stop()
	}
	slog.Info("realtime-server stopped")
}
