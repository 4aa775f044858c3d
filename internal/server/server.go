// Package server is the notes gateway: owner-scoped CRUD over HTTP and
// change notifications over WebSockets.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/mrshanahan/notetaker/internal/cache"
	"github.com/mrshanahan/notetaker/internal/middleware"
	"github.com/mrshanahan/notetaker/pkg/auth"
	"github.com/mrshanahan/notetaker/pkg/events"
)

var (
	TokenCookieName string = auth.AccessTokenCookieName
	NoteLocalName   string = "note"
	OwnerLocalName  string = "owner"
)

type Options struct {
	DB     *sql.DB
	Broker events.Broker

	// Auth and Verifier are both nil when authentication is disabled; the
	// owner is then read from the X-Notes-User header.
	Auth     *auth.Config
	Verifier auth.TokenVerifier

	AllowOrigins string
	// DisableRequestLog drops the per-request access log.
	DisableRequestLog bool
}

type Server struct {
	db       *sql.DB
	broker   events.Broker
	auth     *auth.Config
	verifier auth.TokenVerifier
	nonces   *cache.TimedCache[string]
	opts     Options
}

func New(opts Options) *Server {
	return &Server{
		db:       opts.DB,
		broker:   opts.Broker,
		auth:     opts.Auth,
		verifier: opts.Verifier,
		nonces:   cache.NewTimedCache[string](5*time.Minute, 100),
		opts:     opts,
	}
}

func (s *Server) authEnabled() bool {
	return s.verifier != nil
}

func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(requestid.New(), recover.New())
	if !s.opts.DisableRequestLog {
		app.Use(logger.New())
	}
	if s.opts.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: s.opts.AllowOrigins,
		}))
	}

	app.Get("/healthz", s.Healthz)

	identify := s.identifyCaller()
	app.Route("/notes", func(notes fiber.Router) {
		notes.Use(identify)
		notes.Get("/", s.ListNotes)
		notes.Post("/", s.CreateNote)
		notes.Route("/:noteID", func(note fiber.Router) {
			note.Use(middleware.LoadNoteFromRoute(NoteLocalName, "noteID", OwnerLocalName, s.db))
			note.Get("/", s.GetNote)
			note.Post("/", s.UpdateNote)
			note.Delete("/", s.DeleteNote)
		})
	})
	app.Route("/events", func(ev fiber.Router) {
		ev.Use(identify)
		ev.Get("/:kind", s.RequireEventStream, s.EventStream())
	})

	if s.auth != nil {
		app.Route("/auth", func(auth fiber.Router) {
			auth.Get("/login", s.Login)
			auth.Get("/logout", s.Logout)
			auth.Get("/callback", s.AuthCallback)
		})
	} else {
		slog.Warn("skipping registration of authentication-related endpoints")
	}
	return app
}

func (s *Server) identifyCaller() fiber.Handler {
	if s.authEnabled() {
		return middleware.ValidateAccessToken(OwnerLocalName, TokenCookieName, s.verifier)
	}
	slog.Warn("skipping registration of token validation middleware")
	return middleware.OwnerFromHeader(OwnerLocalName)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) Healthz(c *fiber.Ctx) error {
	if p, ok := s.broker.(pinger); ok {
		if err := p.Ping(c.UserContext()); err != nil {
			slog.Error("broker health check failed", "err", err)
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
	}
	if err := s.db.PingContext(c.UserContext()); err != nil {
		slog.Error("database health check failed", "err", err)
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	return c.SendString("ok")
}
