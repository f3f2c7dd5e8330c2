// Package lobby runs one watcher per room code. A watcher polls the room
// while someone is subscribed and pushes a versioned snapshot whenever the
// stored room changes.
package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/rooms"
)

type Fetcher interface {
	GetRoom(ctx context.Context, code string) (engine.Room, error)
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Poll asks for an immediate refresh, typically right after a write.
type Poll struct{}

func (Poll) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Snapshot is one pushed room state. A nil Room is the last message a
// client gets when the room is gone.
type Snapshot struct {
	Version int
	Room    *engine.Room
}

type View struct {
	Version    int
	NumClients int
	Room       *engine.Room
	Gone       bool
}

type Config struct {
	Code     string
	Fetcher  Fetcher
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger
	// OnGone runs on its own goroutine once the room has disappeared.
	OnGone func(*Lobby)
}

type Lobby struct {
	cfg     Config
	inbox   chan Msg
	room    *engine.Room
	raw     []byte
	version int
	gone    bool
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	l := &Lobby{
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.cfg.Code }

// Inbox exposes the inbox so the hub and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-ticker.C:
			if len(l.clients) > 0 && !l.gone {
				l.refresh()
			}

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				if l.gone {
					close(msg.Outbox)
					break
				}
				l.clients[msg.ClientID] = msg.Outbox
				if l.room == nil {
					l.refresh()
					break
				}
				select {
				case msg.Outbox <- Snapshot{Version: l.version, Room: l.room}:
				default:
					close(msg.Outbox)
					delete(l.clients, msg.ClientID)
				}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Poll:
				if !l.gone {
					l.refresh()
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Room:       l.room,
					Gone:       l.gone,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) refresh() {
	ctx, cancel := context.WithTimeout(l.ctx, l.cfg.Timeout)
	room, err := l.cfg.Fetcher.GetRoom(ctx, l.cfg.Code)
	cancel()

	if errors.Is(err, rooms.ErrNotFound) {
		l.markGone()
		return
	}
	if err != nil {
		l.cfg.Logger.Warn("watch poll failed", zap.String("room", l.cfg.Code), zap.Error(err))
		return
	}

	raw, err := json.Marshal(room)
	if err != nil {
		l.cfg.Logger.Error("encode room", zap.String("room", l.cfg.Code), zap.Error(err))
		return
	}
	if l.room != nil && bytes.Equal(raw, l.raw) {
		return
	}

	l.room = &room
	l.raw = raw
	l.version++
	l.broadcast(Snapshot{Version: l.version, Room: l.room})
}

func (l *Lobby) markGone() {
	l.gone = true
	l.room = nil
	for id, ch := range l.clients {
		// Pending snapshots are stale now; make room for the closing one.
		drainOutbox(ch)
		select {
		case ch <- Snapshot{Version: l.version}:
		default:
		}
		close(ch)
		delete(l.clients, id)
	}
	l.cfg.Logger.Info("room gone, closing watchers", zap.String("room", l.cfg.Code))
	if l.cfg.OnGone != nil {
		go l.cfg.OnGone(l)
	}
}

func drainOutbox(ch chan Snapshot) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
		default:
			// Slow client, drop it.
			close(ch)
			delete(l.clients, id)
		}
	}
}
