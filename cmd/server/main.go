// Package main runs the trading swarm server: one upstream feed
// multiplexer, the shared execution engine and the bot orchestrator,
// plus an HTTP surface for bot management, health and metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-pump-swarm/internal/bot"
	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/execution"
	"solana-pump-swarm/internal/feed"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/storage"
	chstore "solana-pump-swarm/internal/storage/clickhouse"
	"solana-pump-swarm/internal/storage/memory"
	pgstore "solana-pump-swarm/internal/storage/postgres"
)

// Server wires the swarm components behind the HTTP surface.
type Server struct {
	mux          *feed.Multiplexer
	orchestrator *bot.Orchestrator
	logger       *log.Logger
	started      time.Time
}

type allStores struct {
	positionStore  storage.PositionStore
	tradeStore     storage.TradeStore
	botConfigStore storage.BotConfigStore
	tradeArchive   storage.TradeArchive // nil without ClickHouse
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	feedEndpoint := flag.String("feed-endpoint", envOr("FEED_WS_ENDPOINT", "wss://pumpportal.fun/api/data"), "Upstream token feed websocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the fill archive (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", ":8080", "HTTP address for health, metrics and bot management")
	maxBots := flag.Int("max-bots", 500, "Maximum concurrently running bots")
	simLatency := flag.Duration("sim-latency", 25*time.Millisecond, "Simulated submission round trip")
	simSeed := flag.Int64("sim-seed", 0, "Seed for the simulated executor, 0 for clock")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("pump_swarm")

	mux, err := feed.NewMultiplexer(ctx, *feedEndpoint, nil, feed.WithMetrics(metrics))
	if err != nil {
		logger.Fatalf("Failed to connect feed: %v", err)
	}
	defer mux.Close()

	simOpts := execution.DefaultSimOptions()
	simOpts.Latency = *simLatency
	simOpts.Seed = *simSeed

	engineOpts := []execution.Option{execution.WithMetrics(metrics)}
	if stores.tradeArchive != nil {
		engineOpts = append(engineOpts, execution.WithArchive(stores.tradeArchive))
	}
	engine := execution.NewEngine(execution.NewSimSubmitter(simOpts), stores.tradeStore, execution.DefaultConfig(), engineOpts...)

	orch := bot.NewOrchestrator(mux, stores.positionStore, stores.botConfigStore, engine,
		bot.Config{MaxBots: *maxBots},
		bot.WithOrchestratorMetrics(metrics))

	// Relaunch bots registered by a previous run.
	if err := orch.Resume(ctx); err != nil {
		logger.Printf("Resume registered bots: %v", err)
	}

	server := &Server{
		mux:          mux,
		orchestrator: orch,
		logger:       logger,
		started:      time.Now(),
	}
	go server.startHTTPServer(*httpAddr)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Printf("Received signal %v, stopping bots...", sig)
	cancel()

	done := make(chan struct{})
	go func() {
		orch.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(60 * time.Second):
		logger.Println("Graceful shutdown timed out after 60s, forcing exit")
		os.Exit(1)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the persistence layer. ClickHouse is optional and
// only feeds the analytics archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			positionStore:  memory.NewPositionStore(),
			tradeStore:     memory.NewTradeStore(),
			botConfigStore: memory.NewBotConfigStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	stores := &allStores{
		positionStore:  pgstore.NewPositionStore(pool),
		tradeStore:     pgstore.NewTradeStore(pool),
		botConfigStore: pgstore.NewBotConfigStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.tradeArchive = chstore.NewTradeArchiveStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// startHTTPServer serves health, metrics and the bot management API.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/bots", s.handleBots)
	mux.HandleFunc("/bots/", s.handleBot)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	FeedHealthy bool   `json:"feed_healthy"`
	BotsRunning int    `json:"bots_running"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.orchestrator.Health(r.Context())

	resp := HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(s.started).String(),
		FeedHealthy: h.FeedHealthy,
		BotsRunning: len(h.Bots),
	}
	code := http.StatusOK
	if !h.FeedHealthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// StartBotRequest is the JSON body for POST /bots.
type StartBotRequest struct {
	UserID    string `json:"user_id"`
	WalletRef string `json:"wallet_ref"`
	// Preset selects the risk variant: "default" or "aggressive".
	Preset string `json:"preset,omitempty"`

	// Optional overrides on top of the preset.
	BuyAmountSol           *float64 `json:"buy_amount_sol,omitempty"`
	MaxConcurrentPositions *int     `json:"max_concurrent_positions,omitempty"`
	TakeProfitPct          *float64 `json:"take_profit_pct,omitempty"`
	StopLossPct            *float64 `json:"stop_loss_pct,omitempty"`
}

// handleBots lists running bots or starts a new one.
func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h := s.orchestrator.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h)

	case http.MethodPost:
		var req StartBotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		cfg, err := buildBotConfig(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch err := s.orchestrator.Start(r.Context(), cfg); {
		case err == nil:
			w.WriteHeader(http.StatusCreated)
		case errors.Is(err, bot.ErrAlreadyRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, bot.ErrSwarmFull):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBot stops or deregisters a single bot at /bots/{user_id}.
func (s *Server) handleBot(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/bots/")
	if userID == "" || strings.Contains(userID, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		// ?keep=true stops the bot but keeps its registration resumable.
		if r.URL.Query().Get("keep") == "true" {
			if err := s.orchestrator.Stop(userID); err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
		} else if err := s.orchestrator.Deregister(r.Context(), userID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// buildBotConfig resolves the preset and applies overrides.
func buildBotConfig(req StartBotRequest) (domain.BotConfig, error) {
	risk := domain.DefaultRiskConfig()
	switch strings.ToLower(req.Preset) {
	case "", "default":
	case "aggressive":
		risk.Scoring = domain.AggressiveScoringConfig()
	default:
		return domain.BotConfig{}, fmt.Errorf("unknown preset %q", req.Preset)
	}

	if req.BuyAmountSol != nil {
		risk.BuyAmountSol = *req.BuyAmountSol
	}
	if req.MaxConcurrentPositions != nil {
		risk.MaxConcurrentPositions = *req.MaxConcurrentPositions
	}
	if req.TakeProfitPct != nil {
		risk.TakeProfitPct = *req.TakeProfitPct
	}
	if req.StopLossPct != nil {
		risk.StopLossPct = *req.StopLossPct
	}

	return domain.BotConfig{
		UserID:    req.UserID,
		WalletRef: req.WalletRef,
		Risk:      risk,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
