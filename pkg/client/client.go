package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

// UserHeaderName carries the caller's identity when the gateway runs
// without authentication.
const UserHeaderName = "X-Notes-User"

type Client struct {
	URL        string
	HTTPClient *http.Client

	mu    sync.RWMutex
	token string
	user  string
}

func NewClient(url string) *Client {
	return &Client{URL: url}
}

// SetIdentity changes the credentials used by subsequent calls. Streams
// already open keep the identity they were dialed with.
func (c *Client) SetIdentity(token string, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.user = user
}

func (c *Client) Identity() (token string, user string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.user
}

func (c *Client) ListNotes(ctx context.Context) ([]*notes.Note, error) {
	var result []*notes.Note
	if err := c.call(ctx, http.MethodGet, "/notes/", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetNote(ctx context.Context, id string) (*notes.Note, error) {
	var note *notes.Note
	if err := c.call(ctx, http.MethodGet, notePath(id), nil, &note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) CreateNote(ctx context.Context, text string) (*notes.Note, error) {
	var note *notes.Note
	if err := c.call(ctx, http.MethodPost, "/notes/", &notes.NoteRequest{Text: text}, &note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, text string) (*notes.Note, error) {
	var note *notes.Note
	if err := c.call(ctx, http.MethodPost, notePath(id), &notes.NoteRequest{Text: text}, &note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) (*notes.DeletedNote, error) {
	var deleted *notes.DeletedNote
	if err := c.call(ctx, http.MethodDelete, notePath(id), nil, &deleted); err != nil {
		return nil, err
	}
	return deleted, nil
}

// Private functions

func notePath(id string) string {
	return "/notes/" + url.PathEscape(id)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) identify(h http.Header) {
	token, user := c.Identity()
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if user != "" {
		h.Set(UserHeaderName, user)
	}
}

func (c *Client) call(ctx context.Context, method string, path string, payload any, out any) error {
	op := method + " " + path

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error JSON-encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	resp, err := c.invoke(ctx, method, path, body)
	if err != nil {
		return &notes.RemoteCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := validateResponse(op, resp)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return &notes.RemoteCallError{Op: op, Err: fmt.Errorf("error JSON-decoding response body: %w", err)}
		}
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, path string, body io.Reader) (*http.Response, error) {
	requestUrl, err := url.JoinPath(c.URL, path)
	if err != nil {
		return nil, fmt.Errorf("error building URL path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestUrl, body)
	if err != nil {
		return nil, fmt.Errorf("error building API request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.identify(req.Header)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("error invoking API: %w", err)
	}
	return resp, nil
}

func validateResponse(op string, resp *http.Response) ([]byte, error) {
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &notes.RemoteCallError{Op: op, Err: fmt.Errorf("error reading response body: %w", err)}
	}

	if err := statusError(op, resp.StatusCode, respBytes); err != nil {
		return nil, err
	}
	return respBytes, nil
}

func statusError(op string, status int, body []byte) error {
	respStr := strings.TrimSpace(string(body))
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, notes.ErrUnauthorized)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w (response: %s)", op, notes.ErrNotFound, respStr)
	case status == http.StatusBadRequest && respStr == notes.ErrEmptyText.Error():
		return fmt.Errorf("%s: %w", op, notes.ErrEmptyText)
	default:
		return &notes.RemoteCallError{Op: op, StatusCode: status, Err: fmt.Errorf("response: %s", respStr)}
	}
}
