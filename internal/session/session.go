package session

import (
	"context"
	"errors"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/engine"
	"github.com/DoyleJ11/labcards/internal/hub"
)

var ErrClosed = errors.New("session closed")

type Msg interface{ isSessionMsg() }

type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isSessionMsg() {}

type Reset struct {
	Reply chan Result
}

func (Reset) isSessionMsg() {}

type Join struct {
	ClientID string
	Reply    chan Joined
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type Result struct {
	Event engine.Event
	Err   error
}

type Joined struct {
	Sub      *hub.Subscriber
	Snapshot engine.Snapshot
}

type View struct {
	Version    int
	NumClients int
	Snapshot   engine.Snapshot
}

type Config struct {
	Catalog *catalog.Set
	Mode    engine.Mode
	Shuffle engine.Shuffler
	Hub     *hub.Hub
	Logger  *zap.Logger
}

// Session owns the one deck. Every mutation, and every join, runs on the
// loop goroutine, and events are published from there right after the state
// changes, so all subscribers see them in version order.
type Session struct {
	inbox   chan Msg
	state   engine.State
	version int
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = rand.Shuffle
	}
	if cfg.Hub == nil {
		cfg.Hub = hub.NewHub(cfg.Logger, hub.DefaultOutboxSize)
	}

	s := &Session{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   engine.NewState(cfg.Catalog, cfg.Mode, cfg.Shuffle),
		version: 0,
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				snap := engine.Snap(s.state, s.version)
				sub := s.cfg.Hub.Register(msg.ClientID, snap)
				msg.Reply <- Joined{Sub: sub, Snapshot: snap}

			case Leave:
				s.cfg.Hub.Unregister(msg.ClientID)

			case FromClient:
				evt, next, err := engine.Apply(s.state, msg.Cmd)
				if err != nil {
					s.log.Debug("command rejected", zap.String("cmd", string(msg.Cmd.Type)), zap.Error(err))
					msg.Reply <- Result{Err: err}
					break
				}
				s.state = next
				s.version++
				evt.Version = s.version
				s.cfg.Hub.Publish(evt)
				s.log.Info("card revealed",
					zap.String("event", string(evt.Type)),
					zap.Int("version", evt.Version),
					zap.Int("position", evt.Position),
					zap.String("suit", string(evt.Suit)),
					zap.String("card", evt.Card.Name),
				)
				msg.Reply <- Result{Event: evt}

			case Reset:
				s.state = engine.NewState(s.cfg.Catalog, s.cfg.Mode, s.cfg.Shuffle)
				s.version++
				snap := engine.Snap(s.state, s.version)
				evt := engine.Event{Type: engine.EvtReset, Version: s.version, Snapshot: &snap}
				s.cfg.Hub.Publish(evt)
				s.log.Info("session reset", zap.Int("version", s.version))
				msg.Reply <- Result{Event: evt}

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: s.cfg.Hub.Len(),
					Snapshot:   engine.Snap(s.state, s.version),
				}

			case Shutdown:
				s.cancel()
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	s.cfg.Hub.Close()
	s.log.Info("session stopped", zap.Int("version", s.version))
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// await waits for a reply. Once a message is queued the loop finishes it even
// if ctx is cancelled, since reply channels are buffered.
func await[T any](ctx context.Context, s *Session, reply <-chan T) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrClosed
		}
	}
}

func (s *Session) command(ctx context.Context, cmd engine.Command) (engine.Event, error) {
	reply := make(chan Result, 1)
	if err := s.send(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return engine.Event{}, err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return engine.Event{}, err
	}
	return r.Event, r.Err
}

// Draw reveals the next card. It returns engine.ErrExhausted once nothing is left.
func (s *Session) Draw(ctx context.Context) (engine.Event, error) {
	return s.command(ctx, engine.Command{Type: engine.CmdDraw})
}

func (s *Session) Redraw(ctx context.Context, suit catalog.Suit) (engine.Event, error) {
	return s.command(ctx, engine.Command{Type: engine.CmdRedraw, Suit: suit})
}

// Reset replaces the deck with a freshly shuffled one.
func (s *Session) Reset(ctx context.Context) (engine.Event, error) {
	reply := make(chan Result, 1)
	if err := s.send(ctx, Reset{Reply: reply}); err != nil {
		return engine.Event{}, err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return engine.Event{}, err
	}
	return r.Event, r.Err
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, s, reply)
}

func (s *Session) CurrentSnapshot(ctx context.Context) (engine.Snapshot, error) {
	v, err := s.View(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return v.Snapshot, nil
}

// Join registers clientID with the hub. The returned snapshot is also the
// first event on the subscriber, and every later event has a higher version.
func (s *Session) Join(ctx context.Context, clientID string) (*hub.Subscriber, engine.Snapshot, error) {
	reply := make(chan Joined, 1)
	if err := s.send(ctx, Join{ClientID: clientID, Reply: reply}); err != nil {
		return nil, engine.Snapshot{}, err
	}
	j, err := await(ctx, s, reply)
	if err != nil {
		return nil, engine.Snapshot{}, err
	}
	return j.Sub, j.Snapshot, nil
}

// Leave unregisters clientID. It is queued like any other message, so it
// always runs after a Join from the same caller, even one the caller stopped
// waiting for.
func (s *Session) Leave(clientID string) {
	select {
	case s.inbox <- Leave{ClientID: clientID}:
	case <-s.done:
		s.cfg.Hub.Unregister(clientID)
	}
}

// Close stops the loop and closes every subscriber. It waits for the loop to exit.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Expose the inbox so tests can send raw messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }
