package bot

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/execution"
	"solana-pump-swarm/internal/feed"
	"solana-pump-swarm/internal/storage/memory"
)

// Valid base58 32-byte addresses: 31 leading ones pad with zero bytes.
const (
	testWalletRef = "11111111111111111111111111111111"
	mintA         = "1111111111111111111111111111111A"
	mintB         = "1111111111111111111111111111111B"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subReq mirrors the upstream subscription wire format.
type subReq struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// feedServer is a scripted upstream: it accepts the multiplexer's
// connection, records subscription requests and lets the test push
// event frames.
type feedServer struct {
	t      *testing.T
	server *httptest.Server

	mu   sync.Mutex
	conn *websocket.Conn

	requests chan subReq
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	f := &feedServer{t: t, requests: make(chan subReq, 32)}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req subReq
			if json.Unmarshal(msg, &req) == nil && req.Method != "" {
				f.requests <- req
			}
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *feedServer) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

// push sends one event frame to the connected multiplexer.
func (f *feedServer) push(frame map[string]any) {
	f.t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		f.t.Fatalf("marshal frame: %v", err)
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Fatal("no upstream connection")
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		f.t.Fatalf("push frame: %v", err)
	}
}

// awaitRequest waits for a subscription request matching method and,
// when mint is non-empty, carrying it as a key.
func (f *feedServer) awaitRequest(method, mint string) {
	f.t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case req := <-f.requests:
			if req.Method != method {
				continue
			}
			if mint == "" || (len(req.Keys) == 1 && req.Keys[0] == mint) {
				return
			}
		case <-deadline:
			f.t.Fatalf("timed out waiting for %s %s", method, mint)
		}
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestMux(t *testing.T, f *feedServer) *feed.Multiplexer {
	t.Helper()
	cfg := feed.DefaultConfig()
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.MaxReconnectDelay = 100 * time.Millisecond

	m, err := feed.NewMultiplexer(context.Background(), f.url(), &cfg, feed.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewMultiplexer: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	// The initial new-token subscription always arrives first.
	f.awaitRequest("subscribeNewToken", "")
	return m
}

func newTestEngine(t *testing.T) (*execution.Engine, *memory.TradeStore) {
	t.Helper()
	opts := execution.DefaultSimOptions()
	opts.Latency = 0
	opts.Seed = 42

	trades := memory.NewTradeStore()
	e := execution.NewEngine(execution.NewSimSubmitter(opts), trades,
		execution.Config{MaxAttempts: 3, RetryBackoff: time.Millisecond, MaxRetryBackoff: 5 * time.Millisecond},
		execution.WithLogger(quietLogger()))
	return e, trades
}

// fastRisk shrinks the timing knobs so lifecycle tests run in
// milliseconds.
func fastRisk() domain.RiskConfig {
	risk := domain.DefaultRiskConfig()
	risk.SellPortions = 2
	risk.SellWindow = 20 * time.Millisecond
	risk.MonitorTick = 10 * time.Millisecond
	return risk
}

func testBotConfig(userID string) domain.BotConfig {
	return domain.BotConfig{
		UserID:    userID,
		WalletRef: testWalletRef,
		Risk:      fastRisk(),
	}
}

// creationFrame is a token creation that lands on the watchlist.
func creationFrame(mint string) map[string]any {
	return map[string]any{
		"mint":         mint,
		"symbol":       "PUMP",
		"name":         "Pump Token",
		"txType":       "create",
		"marketCapSol": 12_000.0,
		"initialBuy":   1.2,
	}
}

// qualifyingTrade passes every buy gate and scores above the threshold.
func qualifyingTrade(mint string, mc float64) map[string]any {
	return map[string]any{
		"mint":         mint,
		"txType":       "buy",
		"marketCapSol": mc,
		"solAmount":    30.0,
		"txnCount":     60,
		"holderCount":  40,
	}
}

// waitFor polls until cond holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
