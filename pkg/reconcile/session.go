package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lestrrat-go/backoff/v2"
	"github.com/mrshanahan/notetaker/pkg/notes"
	"golang.org/x/sync/errgroup"
)

// ReconnectPolicy paces reconnects after a notification stream drops. A zero
// retry count keeps trying until the session is stopped.
var ReconnectPolicy = backoff.Exponential(
	backoff.WithMinInterval(500*time.Millisecond),
	backoff.WithMaxInterval(30*time.Second),
	backoff.WithJitterFactor(0.1),
	backoff.WithMaxRetries(0),
)

var ErrStreamEnded = errors.New("notification stream ended")

// Session binds the three notification streams for one owner to a store.
// Streams are subscribed before the collection is loaded so nothing that
// happens during the load is missed.
type Session struct {
	gw    Gateway
	store *Store

	// Policy overrides ReconnectPolicy when set.
	Policy backoff.Policy
	// OnConnect runs after every successful subscribe and load.
	OnConnect func(owner string)
	// OnError receives stream and reconnect failures. An ErrUnauthorized
	// failure ends the session.
	OnError func(error)

	mu     sync.Mutex
	owner  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(gw Gateway, store *Store) *Session {
	return &Session{gw: gw, store: store}
}

func (s *Session) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Start subscribes for owner, loads the collection and keeps the streams
// running in the background until ctx ends or the session is closed. A
// running session is stopped first. The first connect is not retried.
func (s *Session) Start(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	streams, err := s.connect(runCtx, owner)
	if err != nil {
		cancel()
		return err
	}
	s.owner = owner
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, owner, streams, s.done)
	return nil
}

// SetIdentity moves the session to another owner: the old streams are torn
// down and the collection is reloaded under the new identity.
func (s *Session) SetIdentity(ctx context.Context, owner string) error {
	slog.Info("switching identity", "from", s.Owner(), "to", owner)
	return s.Start(ctx, owner)
}

// Close stops the streams and waits for them to wind down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.owner = ""
}

// Done is closed when the running session ends. Nil before Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Running reports whether streams are live or being reconnected. It is false
// before Start, after a failed Start, and once the session has ended.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *Session) connect(ctx context.Context, owner string) ([]Stream, error) {
	subscribe := []func(context.Context, string) (Stream, error){
		s.gw.OnCreated,
		s.gw.OnUpdated,
		s.gw.OnDeleted,
	}
	streams := make([]Stream, 0, len(subscribe))
	for _, fn := range subscribe {
		st, err := fn(ctx, owner)
		if err != nil {
			closeAll(streams)
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
		streams = append(streams, st)
	}
	if err := s.store.LoadAll(ctx); err != nil {
		closeAll(streams)
		return nil, err
	}
	slog.Debug("session connected", "owner", owner)
	if s.OnConnect != nil {
		s.OnConnect(owner)
	}
	return streams, nil
}

func (s *Session) run(ctx context.Context, owner string, streams []Stream, done chan struct{}) {
	defer close(done)
	for {
		err := s.pump(ctx, streams)
		if ctx.Err() != nil {
			return
		}
		s.report(err)
		if errors.Is(err, notes.ErrUnauthorized) {
			return
		}
		streams, err = s.reconnect(ctx, owner)
		if err != nil {
			if ctx.Err() == nil {
				s.report(err)
			}
			return
		}
	}
}

// pump feeds events from every stream into the store until one of them ends.
func (s *Session) pump(ctx context.Context, streams []Stream) error {
	defer closeAll(streams)
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range streams {
		st := st
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case e, ok := <-st.Events():
					if !ok {
						if err := st.Err(); err != nil {
							return err
						}
						return ErrStreamEnded
					}
					s.store.ApplyEvent(e)
				}
			}
		})
	}
	return g.Wait()
}

func (s *Session) reconnect(ctx context.Context, owner string) ([]Stream, error) {
	policy := s.Policy
	if policy == nil {
		policy = ReconnectPolicy
	}
	var err error
	attempt := 0
	b := policy.Start(ctx)
	for backoff.Continue(b) {
		attempt++
		var streams []Stream
		streams, err = s.connect(ctx, owner)
		if err == nil {
			return streams, nil
		}
		if errors.Is(err, notes.ErrUnauthorized) {
			return nil, err
		}
		slog.Warn("could not reconnect notification streams", "attempt", attempt, "owner", owner, "err", err)
	}
	if err == nil {
		err = ctx.Err()
	}
	return nil, fmt.Errorf("gave up reconnecting after %d attempts: %w", attempt, err)
}

func (s *Session) report(err error) {
	slog.Warn("notification stream failed", "err", err)
	if s.OnError != nil {
		s.OnError(err)
	}
}

func closeAll(streams []Stream) {
	for _, st := range streams {
		if err := st.Close(); err != nil {
			slog.Debug("error closing stream", "err", err)
		}
	}
}
