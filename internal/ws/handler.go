package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/hub"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/lobby"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/rooms"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/types"
)

const writeTimeout = 3 * time.Second

type Rooms interface {
	GetRoom(ctx context.Context, code string) (engine.Room, error)
	UpdateRoom(ctx context.Context, code string, caller engine.Slot, u engine.Update) (engine.Room, error)
}

type Options struct {
	OriginPatterns []string
	StoreTimeout   time.Duration
	Logger         *zap.Logger
}

// Handler serves GET /rooms/{code}/ws. Snapshots flow out from the room's
// watcher; inbound text frames are update bodies.
func Handler(h *hub.Hub, svc Rooms, opts Options) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))

		ctx, cancel := context.WithTimeout(r.Context(), opts.StoreTimeout)
		_, err := svc.GetRoom(ctx, code)
		cancel()
		switch {
		case errors.Is(err, rooms.ErrNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.String("room", code), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Snapshot, 8)
		clientID := uuid.NewString()

		reply := make(chan *lobby.Lobby, 1)
		if !h.Send(hub.Subscribe{Code: code, ClientID: clientID, Outbox: out, Reply: reply}) {
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
		defer h.Send(hub.Unsubscribe{Code: code, ClientID: clientID})
		select {
		case <-reply:
		case <-r.Context().Done():
			return
		case <-h.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writeSnapshots(writeCtx, conn, out)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					logger.Debug("websocket read ended", zap.String("room", code), zap.Error(err))
				}
				return
			}

			req, err := types.DecodeUpdate(data)
			if err != nil {
				writeError(r.Context(), conn, err)
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), opts.StoreTimeout)
			_, err = svc.UpdateRoom(ctx, code, req.PlayerID, req.Update)
			cancel()
			if err != nil {
				writeError(r.Context(), conn, err)
				continue
			}
			h.Notify(code)
		}
	}
}

func writeSnapshots(ctx context.Context, conn *websocket.Conn, out <-chan lobby.Snapshot) {
	for snap := range out {
		if snap.Room == nil {
			_ = write(ctx, conn, types.ServerMessage{Type: "RoomClosed", Version: snap.Version})
			conn.Close(websocket.StatusNormalClosure, "room closed")
			return
		}
		msg := types.ServerMessage{Type: "RoomSnapshot", Version: snap.Version, Room: snap.Room}
		if err := write(ctx, conn, msg); err != nil {
			return
		}
	}
	// Dropped as a slow client, or the watcher stopped.
	conn.Close(websocket.StatusGoingAway, "watch ended")
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func writeError(ctx context.Context, conn *websocket.Conn, err error) {
	_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: err.Error()})
}
