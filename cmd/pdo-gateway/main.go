package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/pdogate/internal/api"
	"github.com/davidahmann/pdogate/internal/auth"
	"github.com/davidahmann/pdogate/internal/config"
	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/enforce"
	"github.com/davidahmann/pdogate/internal/keys"
	"github.com/davidahmann/pdogate/internal/ledger"
	"github.com/davidahmann/pdogate/internal/ledger/pgstore"
	"github.com/davidahmann/pdogate/internal/ledger/sqlstore"
	"github.com/davidahmann/pdogate/internal/replay"
	"github.com/davidahmann/pdogate/internal/signature"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

// gateway is a ready server plus the background work tied to its lifetime.
type gateway struct {
	server *http.Server
	close  func()
}

func newServer(cfg config.Config) (*gateway, error) {
	binding, err := signature.ParseBinding(cfg.SignerBinding)
	if err != nil {
		return nil, err
	}

	var (
		registry keys.Registry
		nonces   replay.Cache
	)
	closeDB := func() {}
	switch cfg.DB.Driver {
	case "":
		registry = keys.NewInMemoryRegistry()
		nonces = replay.NewInMemoryCache(cfg.ReplayWindow())
	case "sqlite", "postgres":
		store, db, err := openStore(cfg.DB)
		if err != nil {
			return nil, err
		}
		registry = keys.NewLedgerRegistry(store)
		nonces = replay.NewLedgerCache(store, cfg.ReplayWindow())
		closeDB = func() { _ = db.Close() }
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	if cfg.KeyringPath != "" {
		n, err := keys.LoadKeyring(cfg.KeyringPath, registry)
		if err != nil {
			closeDB()
			return nil, fmt.Errorf("load keyring: %w", err)
		}
		log.Printf("pdo-gateway loaded keyring: path=%s keys=%d", cfg.KeyringPath, n)
	}

	svc := enforce.NewService(enforce.Options{
		Registry: registry,
		Nonces:   nonces,
		Signature: signature.Config{
			ReplayWindow: cfg.ReplayWindow(),
			RequireNonce: cfg.Replay.RequireNonce,
			Binding:      binding,
		},
	})

	h := &api.Handler{
		Service:   svc,
		Evaluator: cro.NewEvaluator(nil),
	}
	if cfg.Admin.Enabled() {
		a := &auth.MultiAuthenticator{DevToken: cfg.Admin.DevToken}
		if cfg.Admin.JWTSecret != "" {
			a.JWT = auth.NewJWTAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.RequiredRole)
		}
		h.Auth = a
	}

	ctx, cancel := context.WithCancel(context.Background())
	go replay.RunPruner(ctx, nonces, cfg.PruneInterval(), nil)

	return &gateway{
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.NewRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		close: func() {
			cancel()
			closeDB()
		},
	}, nil
}

type closer interface{ Close() error }

func openStore(db config.DBConfig) (ledger.Store, closer, error) {
	switch db.Driver {
	case "sqlite":
		s, err := sqlstore.OpenSQLite(db.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrateLedger(s.DB(), ledger.DialectSQLite); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := pgstore.OpenPostgres(db.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrateLedger(s.DB(), ledger.DialectPostgres); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", db.Driver)
	}
}

func migrateLedger(db *sql.DB, d ledger.Dialect) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	applied, err := ledger.Migrate(ctx, db, d)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, err := ledger.SchemaVersion(ctx, db, d)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	if len(applied) > 0 {
		log.Printf("ledger schema migrated: dialect=%s applied=%s version=%s", d, strings.Join(applied, ","), version)
	} else {
		log.Printf("ledger schema current: dialect=%s version=%s", d, version)
	}
	return nil
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config) (*gateway, error)

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("pdo-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to pdogate config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("PDOGATE_CONFIG_PATH")
	}

	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	gw, err := factory(cfg)
	if err != nil {
		return err
	}
	defer gw.close()

	log.Printf("pdo-gateway listening on %s", cfg.ListenAddr)
	if err := listen(gw.server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func applyEnv(cfg *config.Config, getenv envFn) error {
	cfg.ListenAddr = firstNonEmpty(getenv("PDOGATE_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	cfg.DB.Driver = firstNonEmpty(getenv("PDOGATE_DB_DRIVER"), cfg.DB.Driver)
	cfg.DB.DSN = firstNonEmpty(getenv("PDOGATE_DB_DSN"), cfg.DB.DSN)
	cfg.KeyringPath = firstNonEmpty(getenv("PDOGATE_KEYRING_PATH"), cfg.KeyringPath)
	cfg.SignerBinding = firstNonEmpty(getenv("PDOGATE_SIGNER_BINDING"), cfg.SignerBinding)
	cfg.Admin.DevToken = firstNonEmpty(getenv("PDOGATE_DEV_TOKEN"), cfg.Admin.DevToken)
	cfg.Admin.JWTSecret = firstNonEmpty(getenv("PDOGATE_JWT_SECRET"), cfg.Admin.JWTSecret)

	if v := getenv("PDOGATE_REPLAY_WINDOW_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PDOGATE_REPLAY_WINDOW_SECONDS: %w", err)
		}
		cfg.Replay.WindowSeconds = n
	}
	if v := getenv("PDOGATE_REQUIRE_NONCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PDOGATE_REQUIRE_NONCE: %w", err)
		}
		cfg.Replay.RequireNonce = b
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
