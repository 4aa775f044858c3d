package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mrshanahan/notetaker/internal/server"
	"github.com/mrshanahan/notetaker/internal/utils"
	"github.com/mrshanahan/notetaker/pkg/auth"
	"github.com/mrshanahan/notetaker/pkg/events"
	notesdb "github.com/mrshanahan/notetaker/pkg/notes-db"
)

var (
	NotesConfigDirectory     string = path.Join(os.Getenv("HOME"), ".notes")
	DefaultPort              int    = 3333
	DefaultNotesDatabaseName string = "notes.sqlite"
	DefaultAllowOrigins      string = "http://localhost:4444"
	RedisChannelPrefix       string = "notes"
)

func main() {
	exitCode := Run()
	os.Exit(exitCode)
}

func Run() int {
	if len(os.Args) > 1 && utils.Any(os.Args[1:], func(x string) bool { return x == "-h" || x == "--help" || x == "-?" }) {
		printHelp()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase()
	if err != nil {
		slog.Error("failed to initialize database", "err", err)
		return 1
	}
	defer db.Close()

	port := DefaultPort
	portStr := os.Getenv("NOTES_API_PORT")
	if p, err := strconv.Atoi(portStr); err != nil {
		slog.Info("no valid port provided via NOTES_API_PORT, using default",
			"portStr", portStr,
			"defaultPort", port)
	} else {
		port = p
		slog.Info("using custom port",
			"port", port)
	}

	broker, err := openBroker(ctx)
	if err != nil {
		slog.Error("failed to initialize event broker", "err", err)
		return 1
	}
	defer broker.Close()

	opts := server.Options{
		DB:           db,
		Broker:       broker,
		AllowOrigins: utils.Getenv("NOTES_API_CORS_ORIGINS", DefaultAllowOrigins),
	}

	if strings.TrimSpace(os.Getenv("NOTES_API_DISABLE_AUTH")) != "" {
		slog.Warn("disabling authentication framework - THIS SHOULD ONLY BE RUN FOR TESTING!")
	} else {
		authProviderUrl := os.Getenv("NOTES_API_AUTH_PROVIDER_URL")
		if authProviderUrl == "" {
			slog.Error("required value for NOTES_API_AUTH_PROVIDER_URL but none provided")
			return 1
		}
		redirectUrl := os.Getenv("NOTES_API_REDIRECT_URL")
		if redirectUrl == "" {
			slog.Error("required value for NOTES_API_REDIRECT_URL but none provided")
			return 1
		}
		authConfig, err := auth.BuildAuthConfig(ctx, "notes-api", authProviderUrl, redirectUrl)
		if err != nil {
			slog.Error("failed to initialize authentication", "err", err)
			return 1
		}
		verifier, err := auth.NewJWKVerifier(ctx, authConfig)
		if err != nil {
			slog.Error("failed to initialize token verification", "err", err)
			return 1
		}
		opts.Auth = authConfig
		opts.Verifier = verifier
	}

	app := server.New(opts).App()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			slog.Error("failed to shut down HTTP server", "err", err)
		}
	}()

	slog.Info("listening for requests", "port", port)
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		slog.Error("failed to run HTTP server",
			"err", err)
		return 1
	}
	return 0
}

func openDatabase() (*sql.DB, error) {
	dbPathDir := os.Getenv("NOTES_API_DB_DIR")
	if dbPathDir == "" {
		dbPathDir = NotesConfigDirectory
		slog.Info("no path provided for DB; using default",
			"dir", dbPathDir)
	} else {
		slog.Info("given DB directory", "dir", dbPathDir)
	}
	if err := os.MkdirAll(dbPathDir, 0777); err != nil {
		return nil, fmt.Errorf("failed to create notes DB directory %s: %w", dbPathDir, err)
	}
	dbPath := path.Join(dbPathDir, DefaultNotesDatabaseName)

	if _, err := os.Stat(dbPath); err != nil && errors.Is(err, os.ErrNotExist) {
		slog.Info("DB does not exist; it will be created during initialization",
			"path", dbPath)
	}
	return notesdb.Initialize(dbPath)
}

func openBroker(ctx context.Context) (events.Broker, error) {
	addr := os.Getenv("NOTES_API_REDIS_ADDR")
	if addr == "" {
		slog.Info("no Redis address provided via NOTES_API_REDIS_ADDR; using in-process event hub")
		return events.NewHub(), nil
	}
	broker, err := events.NewRedisBroker(&redis.Options{Addr: addr}, RedisChannelPrefix)
	if err != nil {
		return nil, err
	}
	if err := broker.Ping(ctx); err != nil {
		broker.Close()
		return nil, fmt.Errorf("redis at %s is not reachable: %w", addr, err)
	}
	slog.Info("publishing events through Redis", "addr", addr)
	return broker, nil
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `
notes-api [-h|--help|-?]

OPTIONS:
	-h|--help|-?	Display this help message and exit

ENVIRONMENT VARIABLES:
	NOTES_API_AUTH_PROVIDER_URL: (required) Base URL of the authorization server
	NOTES_API_REDIRECT_URL:      (required) OAuth2 redirect URL of this API's /auth/callback
	NOTES_API_DISABLE_AUTH:      (optional) Any value disables authentication; the caller is read from X-Notes-User
	NOTES_API_DB_DIR:            (optional) Path to directory where notes.sqlite is located (default: %s)
	NOTES_API_PORT:              (optional) Port on which API should be hosted (default: %d)
	NOTES_API_REDIS_ADDR:        (optional) Redis address used to fan out note events across instances
	NOTES_API_CORS_ORIGINS:      (optional) Allowed CORS origins (default: %s)
`,
		NotesConfigDirectory,
		DefaultPort,
		DefaultAllowOrigins)
}
