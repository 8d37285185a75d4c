package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"snake-relay-server/config"
	"snake-relay-server/metrics"
	"snake-relay-server/protocol"
	"snake-relay-server/ratelimit"
	"snake-relay-server/relay"
	ws "snake-relay-server/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var bus *relay.Bus
	if cfg.RedisAddr != "" {
		b, err := relay.NewBus(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			slog.Error("redis connect", "error", err)
			os.Exit(1)
		}
		defer b.Close()
		bus = b
	}

	engine := relay.New(cfg.PingInterval, bus)
	go engine.Run(ctx)
	handler := protocol.NewHandler(engine)

	limiter := ratelimit.New(cfg.ConnPerMin, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/ws", limiter.Middleware(wsHandler(cfg, engine, handler)))
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/stats", statsHandler(engine))
	mux.Handle("/metrics", metrics.Handler())

	corsmw := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllow,
		AllowedMethods: []string{http.MethodGet},
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           corsmw.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	slog.Info("server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfgLevel string) {
	level := slog.LevelInfo
	switch cfgLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func wsHandler(cfg config.Config, engine *relay.Engine, handler *protocol.Handler) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.CORSAllow),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}
		ws.NewConn(conn, engine, handler).Start()
	}
}

func originChecker(allow []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allow {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(engine *relay.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := engine.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": clients})
	}
}
