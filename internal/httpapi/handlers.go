package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/rooms"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/scores"
	itypes "github.com/DoyleJ11/monkey-rooms-backend/internal/types"
	"github.com/DoyleJ11/monkey-rooms-backend/pkg/types"
)

const maxBodyBytes = 1 << 20

type RoomService interface {
	CreateRoom(ctx context.Context, playerName, mapType string) (rooms.Created, error)
	JoinRoom(ctx context.Context, code, playerName string) (rooms.Joined, error)
	StartGame(ctx context.Context, code string) (engine.Slot, error)
	RestartGame(ctx context.Context, code string) (engine.Slot, error)
	DeleteRoom(ctx context.Context, code string) error
	GetRoom(ctx context.Context, code string) (engine.Room, error)
	UpdateRoom(ctx context.Context, code string, caller engine.Slot, u engine.Update) (engine.Room, error)
}

type ScoreService interface {
	SaveScore(ctx context.Context, playerName string, score int) (string, error)
	TopScores(ctx context.Context, limit int) ([]scores.Score, error)
}

// Notifier is told about every room write so live watchers refresh early.
type Notifier interface {
	Notify(code string)
}

type Deps struct {
	Rooms    RoomService
	Scores   ScoreService
	Notifier Notifier
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (d Deps) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d.Timeout)
}

func roomCode(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}

func CreateRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			d.fail(w, err)
			return
		}

		ctx, cancel := d.ctx(r)
		defer cancel()
		created, err := d.Rooms.CreateRoom(ctx, req.PlayerName, req.MapType)
		if err != nil {
			d.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateRoomResponse{
			RoomCode: created.RoomCode,
			PlayerID: string(created.PlayerID),
		})
	}
}

func GetRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := d.ctx(r)
		defer cancel()
		room, err := d.Rooms.GetRoom(ctx, roomCode(r))
		if err != nil {
			d.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

// PutRoom dispatches join, start, restart and plain updates.
func PutRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			d.fail(w, itypes.ErrMalformed)
			return
		}
		req, err := itypes.DecodeRoomRequest(body)
		if err != nil {
			d.fail(w, err)
			return
		}

		code := roomCode(r)
		ctx, cancel := d.ctx(r)
		defer cancel()

		var resp any
		switch req := req.(type) {
		case itypes.JoinRequest:
			joined, jerr := d.Rooms.JoinRoom(ctx, code, req.PlayerName)
			err = jerr
			resp = types.JoinRoomResponse{
				RoomCode: joined.RoomCode,
				PlayerID: string(joined.PlayerID),
				MapType:  joined.MapType,
			}
		case itypes.StartRequest:
			monkey, serr := d.Rooms.StartGame(ctx, code)
			err = serr
			resp = types.ActionResponse{Status: "started", MonkeyPlayerID: string(monkey)}
		case itypes.RestartRequest:
			monkey, rerr := d.Rooms.RestartGame(ctx, code)
			err = rerr
			resp = types.ActionResponse{Status: "restarted", MonkeyPlayerID: string(monkey)}
		case itypes.UpdateRequest:
			room, uerr := d.Rooms.UpdateRoom(ctx, code, req.PlayerID, req.Update)
			err = uerr
			resp = room
		}
		if err != nil {
			d.fail(w, err)
			return
		}

		d.Notifier.Notify(code)
		writeJSON(w, http.StatusOK, resp)
	}
}

func DeleteRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := roomCode(r)
		ctx, cancel := d.ctx(r)
		defer cancel()
		if err := d.Rooms.DeleteRoom(ctx, code); err != nil {
			d.fail(w, err)
			return
		}
		d.Notifier.Notify(code)
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Room deleted"})
	}
}

func TopScores(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := scores.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				d.fail(w, scores.ErrInvalidLimit)
				return
			}
			limit = n
		}

		ctx, cancel := d.ctx(r)
		defer cancel()
		top, err := d.Scores.TopScores(ctx, limit)
		if err != nil {
			d.fail(w, err)
			return
		}

		resp := types.ScoresResponse{Scores: make([]types.ScoreEntry, 0, len(top))}
		for _, s := range top {
			resp.Scores = append(resp.Scores, types.ScoreEntry{
				ID:         s.ID,
				PlayerName: s.PlayerName,
				Score:      s.Score,
				Timestamp:  s.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func SaveScore(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SaveScoreRequest
		if err := readJSON(r, &req); err != nil {
			d.fail(w, err)
			return
		}
		if req.Score == nil {
			d.fail(w, scores.ErrInvalidScore)
			return
		}

		ctx, cancel := d.ctx(r)
		defer cancel()
		id, err := d.Scores.SaveScore(ctx, req.PlayerName, *req.Score)
		if err != nil {
			d.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.SaveScoreResponse{Message: "Score saved successfully", ScoreID: id})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// statusFor maps service errors to a status code and client-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, rooms.ErrNotFound):
		return http.StatusNotFound, "Room not found"
	case errors.Is(err, rooms.ErrConflict):
		return http.StatusBadRequest, "Room is full"
	case errors.Is(err, rooms.ErrInvalidRequest),
		errors.Is(err, itypes.ErrMalformed),
		errors.Is(err, scores.ErrInvalidScore),
		errors.Is(err, scores.ErrInvalidLimit):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (d Deps) fail(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// readJSON decodes an optional body; an empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return itypes.ErrMalformed
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", itypes.ErrMalformed, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
