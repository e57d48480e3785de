package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/event"
	"github.com/smallbiznis/spinwheel/internal/inventory"
	"github.com/smallbiznis/spinwheel/internal/migration"
	"github.com/smallbiznis/spinwheel/internal/observability"
	"github.com/smallbiznis/spinwheel/internal/ratelimit"
	"github.com/smallbiznis/spinwheel/internal/seed"
	"github.com/smallbiznis/spinwheel/internal/selector"
	"github.com/smallbiznis/spinwheel/internal/server"
	"github.com/smallbiznis/spinwheel/internal/session"
	"github.com/smallbiznis/spinwheel/internal/spin"
	spindomain "github.com/smallbiznis/spinwheel/internal/spin/domain"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"github.com/smallbiznis/spinwheel/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fx.App
	server  *server.Server
	db      *gorm.DB
	cfg     config.Config
	baseURL string
	httpSrv *httptest.Server
	dir     string
}

var (
	env    *testEnv
	ipSeq  atomic.Int64
	resetM sync.Mutex
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dir, err := os.MkdirTemp("", "spinwheel-e2e")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create temp dir:", err)
		os.Exit(1)
	}
	setDefaultEnv(filepath.Join(dir, "spinwheel.db"))

	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		_ = os.RemoveAll(dir)
		os.Exit(1)
	}
	env.dir = dir

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_OneSpinPerSession(t *testing.T) {
	resetDatabase(t)

	client := newHTTPClient()
	ip := nextIP()

	resp, body := do(t, client, http.MethodPost, "/api/spin", ip)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, string(body))
	}
	var result spindomain.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	labels := wheel.Default().Labels()
	if result.SliceIndex < 0 || result.SliceIndex >= len(labels) || labels[result.SliceIndex] != result.Label {
		t.Fatalf("label %q does not match slice %d", result.Label, result.SliceIndex)
	}

	resp, body = do(t, client, http.MethodPost, "/api/spin", ip)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.StatusCode, string(body))
	}
	if kind := errorType(t, body); kind != "already_spun" {
		t.Fatalf("expected already_spun, got %s", kind)
	}

	resp, body = do(t, newHTTPClient(), http.MethodGet, "/api/admin/inventory", ip)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for inventory, got %d: %s", resp.StatusCode, string(body))
	}
	var inv spindomain.InventoryResponse
	if err := json.Unmarshal(body, &inv); err != nil {
		t.Fatalf("decode inventory: %v", err)
	}
	if inv.TotalSpins != 1 {
		t.Fatalf("expected 1 spin, got %d", inv.TotalSpins)
	}
	if len(inv.Prizes) != 6 {
		t.Fatalf("expected 6 prizes, got %d", len(inv.Prizes))
	}
}

func TestE2E_RateLimitPerClient(t *testing.T) {
	resetDatabase(t)
	ip := nextIP()

	for i := 0; i < 10; i++ {
		resp, body := do(t, newHTTPClient(), http.MethodPost, "/api/spin", ip)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d: %s", i+1, resp.StatusCode, string(body))
		}
	}

	resp, body := do(t, newHTTPClient(), http.MethodPost, "/api/spin", ip)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d: %s", resp.StatusCode, string(body))
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if kind := errorType(t, body); kind != "rate_limited" {
		t.Fatalf("expected rate_limited, got %s", kind)
	}

	resp, body = do(t, newHTTPClient(), http.MethodPost, "/api/spin", nextIP())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected another client to be admitted, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_StatusAndRecentSpins(t *testing.T) {
	resetDatabase(t)

	resp, body := do(t, newHTTPClient(), http.MethodGet, "/api/status", nextIP())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, string(body))
	}
	var status spindomain.StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.AllPrizesGone || status.TotalRemaining != 90 {
		t.Fatalf("unexpected status %+v", status)
	}

	for i := 0; i < 3; i++ {
		resp, body := do(t, newHTTPClient(), http.MethodPost, "/api/spin", nextIP())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("spin %d: expected status 200, got %d: %s", i+1, resp.StatusCode, string(body))
		}
	}

	resp, body = do(t, newHTTPClient(), http.MethodGet, "/api/admin/spins?limit=2", nextIP())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, string(body))
	}
	var spins []spindomain.SpinResponse
	if err := json.Unmarshal(body, &spins); err != nil {
		t.Fatalf("decode spins: %v", err)
	}
	if len(spins) != 2 {
		t.Fatalf("expected 2 spins, got %d", len(spins))
	}
}

func TestE2E_ExhaustedInventory(t *testing.T) {
	resetDatabase(t)
	if err := env.db.Exec(`UPDATE prizes SET remaining_inventory = 0`).Error; err != nil {
		t.Fatalf("drain prizes: %v", err)
	}

	resp, body := do(t, newHTTPClient(), http.MethodPost, "/api/spin", nextIP())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, string(body))
	}
	var result spindomain.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.IsPrize || !result.AllPrizesGone {
		t.Fatalf("expected a message with all prizes gone, got %+v", result)
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv    *server.Server
		dbConn *gorm.DB
		cfg    config.Config
	)

	app := fx.New(
		fx.NopLogger,
		observability.Module,
		config.Module,
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,
		seed.Module,
		wheel.Module,
		ratelimit.Module,
		event.Module,
		inventory.Module,
		session.Module,
		selector.Module,
		spin.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn, &cfg),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		server:  srv,
		db:      dbConn,
		cfg:     cfg,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
	if e.dir != "" {
		_ = os.RemoveAll(e.dir)
	}
}

func setDefaultEnv(dbPath string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_PATH", dbPath)
	setEnvIfEmpty("BOOTSTRAP_SEED", "true")
	setEnvIfEmpty("EVENT_SLUG", "default")
	setEnvIfEmpty("OTEL_ENABLED", "false")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("TRUSTED_PROXIES", "127.0.0.1")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	resetM.Lock()
	defer resetM.Unlock()

	if _, err := seed.ResetEvent(context.Background(), env.db, env.cfg.EventSlug); err != nil {
		t.Fatalf("reset event: %v", err)
	}
}

// nextIP hands each test its own client address so limiter windows do not
// leak between tests.
func nextIP() string {
	n := ipSeq.Add(1)
	return fmt.Sprintf("198.51.%d.%d", n/250, n%250+1)
}

func do(t *testing.T, client *http.Client, method, path, clientIP string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, env.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Forwarded-For", clientIP)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func errorType(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Type
}

func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 15 * time.Second,
		Jar:     jar,
	}
}
