package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

// Stream is one long-lived notification feed. Events is closed when the
// stream ends; Err then reports why (nil after Close or context cancel).
type Stream struct {
	Kind notes.EventKind

	events chan notes.Event
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *Stream) Events() <-chan notes.Event {
	return s.events
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the stream and waits for its reader to exit.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (c *Client) OnCreated(ctx context.Context, owner string) (*Stream, error) {
	return c.Subscribe(ctx, notes.EventCreated, owner)
}

func (c *Client) OnUpdated(ctx context.Context, owner string) (*Stream, error) {
	return c.Subscribe(ctx, notes.EventUpdated, owner)
}

func (c *Client) OnDeleted(ctx context.Context, owner string) (*Stream, error) {
	return c.Subscribe(ctx, notes.EventDeleted, owner)
}

// Subscribe dials the gateway's stream of kind events. owner, when set,
// overrides the client's user for this stream.
func (c *Client) Subscribe(ctx context.Context, kind notes.EventKind, owner string) (*Stream, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing API URL: %w", err)
	}
	u = u.JoinPath("events", string(kind))
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	c.identify(header)
	if owner != "" {
		header.Set(UserHeaderName, owner)
	}

	op := "GET " + u.Path
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			if serr := statusError(op, resp.StatusCode, nil); serr != nil {
				return nil, serr
			}
		}
		return nil, &notes.RemoteCallError{Op: op, Err: fmt.Errorf("failed to dial: %w", err)}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		Kind:   kind,
		events: make(chan notes.Event),
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		<-streamCtx.Done()
		conn.Close()
	}()
	go s.read(streamCtx, op)

	return s, nil
}

func (s *Stream) read(ctx context.Context, op string) {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	for {
		var e notes.Event
		if err := s.conn.ReadJSON(&e); err != nil {
			if ctx.Err() == nil {
				s.fail(op, err)
			}
			return
		}
		if e.Kind != s.Kind {
			continue
		}
		select {
		case s.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		s.err = &notes.RemoteCallError{Op: op, Err: errors.New("stream closed by gateway")}
		return
	}
	s.err = &notes.RemoteCallError{Op: op, Err: err}
}
