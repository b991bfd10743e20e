package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/config"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Server.Port = 0
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateway_New_RequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("Expected error without config")
	}
}

func TestGateway_New_RejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "mysql"

	if _, err := New(cfg, WithLogger(testLogger())); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestGateway_New_OptionErrors(t *testing.T) {
	cfg := testConfig(t)
	if _, err := New(cfg, WithLogger(nil)); err == nil {
		t.Error("Expected error for nil logger")
	}
	if _, err := New(cfg, WithConfigWatch("")); err == nil {
		t.Error("Expected error for empty config path")
	}
}

func TestGateway_WarnsWhenAdminRoutesOpen(t *testing.T) {
	tests := []struct {
		name   string
		admins []string
		warn   bool
	}{
		{name: "no admin users", warn: true},
		{name: "admin users configured", admins: []string{"ops"}, warn: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			cfg := testConfig(t)
			cfg.Auth.AdminUsers = tt.admins
			gw, err := New(cfg, WithLogger(logger))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer gw.Shutdown(context.Background())

			if got := strings.Contains(buf.String(), "/admin routes are open"); got != tt.warn {
				t.Errorf("warning logged = %v, want %v; log:\n%s", got, tt.warn, buf.String())
			}
		})
	}
}

func TestGateway_QueryEndToEnd(t *testing.T) {
	var prompts atomic.Value
	gen := ports.GeneratorFunc(func(_ context.Context, prompt string) (*domain.Generation, error) {
		prompts.Store(prompt)
		return &domain.Generation{Text: "SP001 giá 25.000đ", ApproxTokensUsed: 42}, nil
	})

	gw, err := New(testConfig(t), WithLogger(testLogger()), WithGenerator(gen))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	ctx := context.Background()
	if err := gw.Store().Upsert(ctx,
		domain.Product{ProductCode: "SP001", Name: "Gạo ST25", Category: "gạo", Unit: "kg", Price: 25000, Status: "active"},
	); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"text": "thông tin sản phẩm SP001"})
	resp, err := http.Post(ts.URL+"/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/query: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("x-ratelimit-limit-requests") == "" {
		t.Error("missing rate limit headers")
	}

	var out domain.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Answer != "SP001 giá 25.000đ" {
		t.Errorf("answer = %q", out.Answer)
	}
	if out.TokensUsed != 42 {
		t.Errorf("tokens used = %d, want 42", out.TokensUsed)
	}
	if out.ConversationID == "" {
		t.Error("expected a conversation id")
	}

	prompt, _ := prompts.Load().(string)
	if !strings.Contains(prompt, "Gạo ST25") {
		t.Errorf("prompt missing seeded product:\n%s", prompt)
	}
}

func TestGateway_StartAndShutdown(t *testing.T) {
	gw, err := New(testConfig(t), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestGateway_Reload(t *testing.T) {
	gw, err := New(testConfig(t), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	next := *gw.cfg
	next.RateLimit.MinuteLimit = 3
	next.RateLimit.HourLimit = 10
	next.Cache.TTL = time.Minute
	gw.reload(&next)

	limits := gw.limiter.Limits()
	if limits.MinuteLimit != 3 || limits.HourLimit != 10 {
		t.Errorf("limits = %+v, want 3/10", limits)
	}
	if gw.cfg.Cache.TTL != time.Minute {
		t.Errorf("cfg not swapped, ttl = %v", gw.cfg.Cache.TTL)
	}
}

func TestRestartRequired(t *testing.T) {
	base := testConfig(t)

	same := *base
	same.RateLimit.MinuteLimit = 1
	if restartRequired(base, &same) {
		t.Error("rate limit change should not require restart")
	}

	moved := *base
	moved.Server.Port = 9999
	if !restartRequired(base, &moved) {
		t.Error("port change should require restart")
	}

	admins := *base
	admins.Auth.AdminUsers = []string{"ops"}
	if !restartRequired(base, &admins) {
		t.Error("admin change should require restart")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
