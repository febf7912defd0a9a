package main

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/pdogate/internal/config"
	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/keys"
)

func stubGateway(addr string) *gateway {
	return &gateway{server: &http.Server{Addr: addr}, close: func() {}}
}

func TestNewServerInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:9999"
	gw, err := newServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer gw.close()
	if gw.server.Addr != cfg.ListenAddr {
		t.Fatalf("expected addr %s, got %s", cfg.ListenAddr, gw.server.Addr)
	}
	if gw.server.Handler == nil {
		t.Fatalf("expected handler to be set")
	}

	res := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(`{}`)))
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected key registration disabled without admin auth, got %d", res.Code)
	}
}

func TestNewServerSQLiteWithKeyring(t *testing.T) {
	dir := t.TempDir()
	_, pub, err := crypto.KeyPairFromSeed(bytes.Repeat([]byte{3}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	keyringPath := filepath.Join(dir, "keyring.yaml")
	if err := keys.WriteKeyring(keyringPath, keys.Keyring{Keys: []keys.KeyringEntry{{
		KeyID:     "settlement-2025",
		Algorithm: "ED25519",
		Material:  keys.EncodeMaterial(pub),
		AgentID:   "settlement-bot",
	}}}); err != nil {
		t.Fatalf("write keyring: %v", err)
	}

	cfg := config.Default()
	cfg.DB = config.DBConfig{Driver: "sqlite", DSN: "file:" + filepath.Join(dir, "pdogate.db")}
	cfg.KeyringPath = keyringPath
	cfg.Admin.DevToken = "admin"

	gw, err := newServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer gw.close()

	req := httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(`{"key_id":"k","algorithm":"HMAC-SHA256","material":"hex:0a0b"}`))
	req.Header.Set("Authorization", "Bearer admin")
	res := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
}

func TestNewServerErrors(t *testing.T) {
	cfg := config.Default()
	cfg.SignerBinding = "lenient"
	if _, err := newServer(cfg); err == nil {
		t.Fatalf("expected binding error")
	}

	cfg = config.Default()
	cfg.DB.Driver = "mysql"
	if _, err := newServer(cfg); err == nil {
		t.Fatalf("expected driver error")
	}

	cfg = config.Default()
	cfg.KeyringPath = filepath.Join(t.TempDir(), "keyring.yaml")
	if err := os.WriteFile(cfg.KeyringPath, []byte("keys:\n  - key_id: bad\n    algorithm: RSA\n    material: hex:00\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := newServer(cfg); err == nil {
		t.Fatalf("expected keyring error")
	}
}

func TestRunDefaults(t *testing.T) {
	closed := false
	factory := func(cfg config.Config) (*gateway, error) {
		if cfg.ListenAddr != ":8080" {
			t.Fatalf("expected default addr, got %s", cfg.ListenAddr)
		}
		if cfg.DB.Driver != "" || cfg.Admin.Enabled() {
			t.Fatalf("expected in-memory defaults, got %+v", cfg)
		}
		gw := stubGateway(cfg.ListenAddr)
		gw.close = func() { closed = true }
		return gw, nil
	}

	listen := func(_ *http.Server) error {
		return http.ErrServerClosed
	}

	getenv := func(string) string { return "" }
	if err := run(nil, getenv, listen, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed {
		t.Fatalf("expected gateway close on exit")
	}
}

func TestRunError(t *testing.T) {
	listenErr := errors.New("listen failed")
	listen := func(_ *http.Server) error {
		return listenErr
	}

	factory := func(cfg config.Config) (*gateway, error) {
		return stubGateway(cfg.ListenAddr), nil
	}

	getenv := func(key string) string {
		if key == "PDOGATE_LISTEN_ADDR" {
			return "127.0.0.1:1234"
		}
		return ""
	}

	if err := run(nil, getenv, listen, factory); !errors.Is(err, listenErr) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunFactoryError(t *testing.T) {
	factory := func(config.Config) (*gateway, error) {
		return nil, errors.New("boom")
	}
	listen := func(_ *http.Server) error {
		t.Fatalf("listen should not be called")
		return nil
	}
	if err := run(nil, func(string) string { return "" }, listen, factory); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunLoadsConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdogate.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9999\"\nsigner_binding: required\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	factory := func(cfg config.Config) (*gateway, error) {
		if cfg.ListenAddr != ":9999" {
			t.Fatalf("expected addr from config, got %s", cfg.ListenAddr)
		}
		if cfg.SignerBinding != "required" {
			t.Fatalf("expected binding from config, got %s", cfg.SignerBinding)
		}
		if cfg.Admin.DevToken != "env-token" || !cfg.Replay.RequireNonce || cfg.Replay.WindowSeconds != 120 {
			t.Fatalf("expected env overrides, got %+v", cfg)
		}
		return stubGateway(cfg.ListenAddr), nil
	}

	listen := func(_ *http.Server) error { return http.ErrServerClosed }
	env := map[string]string{
		"PDOGATE_CONFIG_PATH":           path,
		"PDOGATE_DEV_TOKEN":             "env-token",
		"PDOGATE_REQUIRE_NONCE":         "true",
		"PDOGATE_REPLAY_WINDOW_SECONDS": "120",
	}
	getenv := func(key string) string { return env[key] }

	if err := run(nil, getenv, listen, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsBadEnv(t *testing.T) {
	factory := func(cfg config.Config) (*gateway, error) { return stubGateway(cfg.ListenAddr), nil }
	listen := func(_ *http.Server) error { return http.ErrServerClosed }
	for _, key := range []string{"PDOGATE_REQUIRE_NONCE", "PDOGATE_REPLAY_WINDOW_SECONDS"} {
		getenv := func(k string) string {
			if k == key {
				return "nope"
			}
			return ""
		}
		if err := run(nil, getenv, listen, factory); err == nil {
			t.Fatalf("%s: expected error", key)
		}
	}
	getenv := func(k string) string {
		if k == "PDOGATE_DB_DRIVER" {
			return "sqlite"
		}
		return ""
	}
	if err := run(nil, getenv, listen, factory); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestRunBadFlag(t *testing.T) {
	if err := run([]string{"--nope"}, func(string) string { return "" }, nil, nil); err == nil {
		t.Fatalf("expected flag error")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "a", "b"); got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestListenAndServeInvalidAddr(t *testing.T) {
	err := listenAndServe(&http.Server{Addr: "127.0.0.1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMainNoError(t *testing.T) {
	oldRun := runFn
	oldFatal := fatalf
	defer func() {
		runFn = oldRun
		fatalf = oldFatal
	}()

	runFn = func(args []string, envFn envFn, listenFn listenFn, serverFactory serverFactory) error {
		return nil
	}

	called := false
	fatalf = func(string, ...any) {
		called = true
	}

	main()
	if called {
		t.Fatalf("unexpected fatal call")
	}
}

func TestMainError(t *testing.T) {
	oldRun := runFn
	oldFatal := fatalf
	defer func() {
		runFn = oldRun
		fatalf = oldFatal
	}()

	runFn = func(args []string, envFn envFn, listenFn listenFn, serverFactory serverFactory) error {
		return errors.New("boom")
	}

	called := false
	fatalf = func(string, ...any) {
		called = true
	}

	main()
	if !called {
		t.Fatalf("expected fatal call")
	}
}
