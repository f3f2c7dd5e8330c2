// Package hub owns the room watchers. Every subscribe, unsubscribe and
// release goes through the hub's loop, so a client can never join a watcher
// that is being torn down.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

// Subscribe attaches a client to the watcher for Code, starting one if
// needed. Reply receives the watcher.
type Subscribe struct {
	Code     string
	ClientID string
	Outbox   chan lobby.Snapshot
	Reply    chan *lobby.Lobby
}

type Unsubscribe struct {
	Code     string
	ClientID string
}

// Release is sent by a watcher whose room is gone.
type Release struct {
	Lobby *lobby.Lobby
}

// Poke asks the watcher for Code, if any, to refresh now.
type Poke struct {
	Code string
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Release) isHubMsg()     {}
func (Poke) isHubMsg()        {}
func (GetLobby) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type entry struct {
	lb      *lobby.Lobby
	clients map[string]struct{}
}

type Hub struct {
	inbox    chan HubMsg
	lobbies  map[string]*entry
	fetcher  lobby.Fetcher
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, fetcher lobby.Fetcher, interval, timeout time.Duration, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		lobbies:  make(map[string]*entry),
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Send delivers msg unless the hub has stopped.
func (h *Hub) Send(msg HubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Notify pokes the watcher for code without blocking the caller.
func (h *Hub) Notify(code string) {
	select {
	case h.inbox <- Poke{Code: code}:
	default:
		h.logger.Debug("hub busy, dropping poke", zap.String("room", code))
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			// Watchers share h.ctx and close their clients on their own.
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				e := h.ensure(msg.Code)
				e.clients[msg.ClientID] = struct{}{}
				e.lb.Inbox() <- lobby.Join{ClientID: msg.ClientID, Outbox: msg.Outbox}
				msg.Reply <- e.lb

			case Unsubscribe:
				e := h.lobbies[msg.Code]
				if e == nil {
					break
				}
				if _, ok := e.clients[msg.ClientID]; !ok {
					break
				}
				delete(e.clients, msg.ClientID)
				e.lb.Inbox() <- lobby.Leave{ClientID: msg.ClientID}
				if len(e.clients) == 0 {
					h.remove(msg.Code, "idle")
				}

			case Release:
				code := msg.Lobby.Code()
				if e := h.lobbies[code]; e != nil && e.lb == msg.Lobby {
					h.remove(code, "room gone")
				}

			case Poke:
				if e := h.lobbies[msg.Code]; e != nil {
					select {
					case e.lb.Inbox() <- lobby.Poll{}:
					default:
					}
				}

			case GetLobby:
				var lb *lobby.Lobby
				if e := h.lobbies[msg.Code]; e != nil {
					lb = e.lb
				}
				msg.Reply <- lb // may be nil

			case ShutdownHub:
				for _, e := range h.lobbies {
					e.lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}

func (h *Hub) ensure(code string) *entry {
	if e := h.lobbies[code]; e != nil {
		return e
	}
	lb := lobby.NewLobby(h.ctx, lobby.Config{
		Code:     code,
		Fetcher:  h.fetcher,
		Interval: h.interval,
		Timeout:  h.timeout,
		Logger:   h.logger,
		OnGone:   func(lb *lobby.Lobby) { h.Send(Release{Lobby: lb}) },
	})
	e := &entry{lb: lb, clients: make(map[string]struct{})}
	h.lobbies[code] = e
	h.logger.Debug("watcher started", zap.String("room", code))
	return e
}

func (h *Hub) remove(code, reason string) {
	e := h.lobbies[code]
	delete(h.lobbies, code)
	e.lb.Inbox() <- lobby.Shutdown{}
	h.logger.Debug("watcher stopped", zap.String("room", code), zap.String("reason", reason))
}
