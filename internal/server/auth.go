package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notetaker/pkg/auth"
)

func (s *Server) createNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	nonce := base64.StdEncoding.EncodeToString(randomBytes)
	s.nonces.Insert(nonce)
	return nonce, nil
}

func (s *Server) Login(c *fiber.Ctx) error {
	cameFromParam := c.Query("came_from")
	var cameFrom string
	if cameFromParam != "" {
		cameFromBytes, err := base64.URLEncoding.DecodeString(cameFromParam)
		if err == nil {
			cameFrom = s.redirectTarget(string(cameFromBytes))
		}
	}

	state := &auth.State{CameFrom: cameFrom}
	nonce, err := s.createNonce()
	if err != nil {
		slog.Error("failed to create login nonce", "err", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	stateParam, err := state.Encode(nonce)
	if err != nil {
		slog.Error("failed to encode login state", "err", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	url := s.auth.LoginConfig.AuthCodeURL(stateParam)

	return c.Redirect(url, fiber.StatusSeeOther)
}

func (s *Server) Logout(c *fiber.Ctx) error {
	c.ClearCookie(TokenCookieName)
	return c.SendString("Logout successful")
}

func (s *Server) AuthCallback(c *fiber.Ctx) error {
	state, nonce, err := auth.ParseState(c.Query("state"))
	if err != nil {
		c.Status(fiber.StatusUnauthorized)
		return c.SendString(fmt.Sprintf("state is invalid: %s", err))
	}
	if _, ok := s.nonces.GetAndRemove(nonce); !ok {
		c.Status(fiber.StatusUnauthorized)
		return c.SendString("state is invalid: nonce not found in cache")
	}

	token, err := s.auth.LoginConfig.Exchange(c.UserContext(), c.Query("code"))
	if err != nil {
		slog.Warn("code-token exchange failed", "err", err)
		c.Status(fiber.StatusUnauthorized)
		return c.SendString("Code-Token Exchange Failed")
	}

	identity, err := s.verifier.Verify(c.UserContext(), token.AccessToken)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	slog.Info("user logged in", "owner", identity.Subject)

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookieName,
		Value:    token.AccessToken,
		HTTPOnly: true,
	})

	if target := s.redirectTarget(state.CameFrom); target != "" {
		return c.Redirect(target)
	}
	return c.SendString("Login successful")
}

// redirectTarget returns cameFrom if it is a same-site path or lies under one
// of the allowed CORS origins, and "" otherwise.
func (s *Server) redirectTarget(cameFrom string) string {
	if cameFrom == "" || strings.ContainsAny(cameFrom, "\\\r\n") {
		return ""
	}
	u, err := url.Parse(cameFrom)
	if err != nil {
		return ""
	}
	if u.Scheme == "" && u.Host == "" {
		if strings.HasPrefix(cameFrom, "/") && !strings.HasPrefix(cameFrom, "//") {
			return cameFrom
		}
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.User != nil {
		return ""
	}
	origin := u.Scheme + "://" + u.Host
	for _, allowed := range strings.Split(s.opts.AllowOrigins, ",") {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return cameFrom
		}
	}
	return ""
}
