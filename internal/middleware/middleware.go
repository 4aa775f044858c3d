package middleware

import (
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notetaker/pkg/auth"
	"github.com/mrshanahan/notetaker/pkg/notes"
	notesdb "github.com/mrshanahan/notetaker/pkg/notes-db"
)

const (
	UserHeaderName = "X-Notes-User"
	DefaultOwner   = "local"
)

func GetOwner(c *fiber.Ctx, localName string) string {
	owner, _ := c.Locals(localName).(string)
	return owner
}

func GetNote(c *fiber.Ctx, localName string) *notes.Note {
	note, _ := c.Locals(localName).(*notes.Note)
	return note
}

// LoadNoteFromRoute resolves the route's note id within the caller's notes.
// Notes of other owners are reported as not found.
func LoadNoteFromRoute(localName string, param string, ownerLocalName string, db *sql.DB) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Params(param))
		if id == "" {
			c.Status(fiber.StatusBadRequest)
			return c.SendString("invalid request")
		}
		owner := GetOwner(c, ownerLocalName)
		found, err := notesdb.GetNote(db, owner, id)
		if err != nil {
			slog.Error("failed to execute query to retrieve note",
				"id", id,
				"err", err)
			c.Status(fiber.StatusInternalServerError)
			return c.SendString("failed to load note")
		}
		if found == nil {
			c.Status(fiber.StatusNotFound)
			return c.SendString(fmt.Sprintf("no note with id: %s", id))
		}
		c.Locals(localName, found)
		return c.Next()
	}
}

var bearerTokenPattern *regexp.Regexp = regexp.MustCompile(`^Bearer\s+(.*)$`)

// ValidateAccessToken accepts a bearer token or, failing that, the access
// token cookie, and stores the token's subject as the request owner.
func ValidateAccessToken(ownerLocalName string, cookieName string, verifier auth.TokenVerifier) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		var tokenStr string
		if authHeaderValue := c.Get(fiber.HeaderAuthorization); authHeaderValue == "" {
			tokenStr = c.Cookies(cookieName)
		} else {
			match := bearerTokenPattern.FindStringSubmatch(authHeaderValue)
			if match == nil {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			tokenStr = match[1]
		}
		if tokenStr == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		identity, err := verifier.Verify(c.UserContext(), tokenStr)
		if err != nil {
			slog.Debug("rejected access token", "err", err)
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		c.Locals(ownerLocalName, identity.Subject)
		return c.Next()
	}
}

// OwnerFromHeader trusts the X-Notes-User header. Only for running with
// authentication disabled.
func OwnerFromHeader(ownerLocalName string) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		owner := strings.TrimSpace(c.Get(UserHeaderName))
		if owner == "" {
			owner = DefaultOwner
		}
		c.Locals(ownerLocalName, owner)
		return c.Next()
	}
}
