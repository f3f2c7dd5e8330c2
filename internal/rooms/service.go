// Package rooms runs the two-player room lifecycle and the per-tick update
// path on top of a store.Store. It keeps no session state of its own: every
// call is a self-contained round trip to the store.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/store"
)

const maxCodeAttempts = 8

type Service struct {
	store   store.Store
	logger  *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
	intn    func(n int) int
	ttl     time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCode = gen }
}

// WithPicker replaces the random draw used to choose the monkey controller.
func WithPicker(intn func(n int) int) Option { return func(s *Service) { s.intn = intn } }

func WithTTL(ttl time.Duration) Option { return func(s *Service) { s.ttl = ttl } }

func NewService(st store.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		logger:  logger,
		now:     time.Now,
		newCode: GenerateCode,
		intn:    rand.Intn,
		ttl:     engine.RoomTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Created struct {
	RoomCode string
	PlayerID engine.Slot
}

type Joined struct {
	RoomCode string
	PlayerID engine.Slot
	MapType  string
}

func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("%w: missing room code", ErrInvalidRequest)
	}
	return code, nil
}

// CreateRoom stores a new room with the caller in slot one. The write is
// insert-only, so a code collision draws a new code instead of clobbering a
// live room.
func (s *Service) CreateRoom(ctx context.Context, playerName, mapType string) (Created, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return Created{}, fmt.Errorf("%w: generate code: %w", ErrStoreUnavailable, err)
		}

		now := s.now()
		room := engine.NewRoom(code, mapType, playerName, now, s.ttl)
		doc, err := store.Encode(room)
		if err != nil {
			return Created{}, err
		}

		err = s.store.PutIfAbsent(ctx, code, doc, time.Unix(room.ExpiresAt, 0))
		if errors.Is(err, store.ErrAlreadyExists) {
			s.logger.Info("room code collision, regenerating", zap.String("room", code), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return Created{}, translate(err)
		}

		s.logger.Info("room created", zap.String("room", code), zap.String("map", room.MapType))
		return Created{RoomCode: code, PlayerID: engine.SlotOne}, nil
	}
	return Created{}, fmt.Errorf("%w: could not allocate room code", ErrStoreUnavailable)
}

// JoinRoom fills slot two. The write only lands if slot two is still empty,
// so of two racing joins exactly one wins and the other sees ErrConflict.
func (s *Service) JoinRoom(ctx context.Context, code, playerName string) (Joined, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return Joined{}, err
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return Joined{}, err
	}
	if room.Player2 != nil {
		return Joined{}, ErrConflict
	}

	slot := engine.SlotTwo.Field()
	err = s.store.UpdatePartial(ctx, code, store.Patch(engine.JoinPatch(playerName)), store.IfNull(slot))
	if errors.Is(err, store.ErrConditionFailed) {
		return Joined{}, ErrConflict
	}
	if err != nil {
		return Joined{}, translate(err)
	}

	s.logger.Info("player joined", zap.String("room", code))
	return Joined{RoomCode: code, PlayerID: engine.SlotTwo, MapType: room.MapType}, nil
}

// StartGame picks the monkey controller among occupied slots and moves the
// room to playing.
func (s *Service) StartGame(ctx context.Context, code string) (engine.Slot, error) {
	return s.transition(ctx, code, engine.StartPatch)
}

// RestartGame re-picks the monkey controller and resets score, monkey and
// larry.
func (s *Service) RestartGame(ctx context.Context, code string) (engine.Slot, error) {
	return s.transition(ctx, code, engine.RestartPatch)
}

func (s *Service) transition(ctx context.Context, code string, build func(engine.Slot) engine.Patch) (engine.Slot, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return "", err
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return "", err
	}

	monkey := engine.PickMonkey(room, s.intn)
	if err := s.store.UpdatePartial(ctx, code, store.Patch(build(monkey))); err != nil {
		return "", translate(err)
	}

	s.logger.Info("game state changed", zap.String("room", code), zap.String("monkey", string(monkey)))
	return monkey, nil
}

func (s *Service) DeleteRoom(ctx context.Context, code string) error {
	code, err := normalizeCode(code)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, code); err != nil {
		return translate(err)
	}
	s.logger.Info("room deleted", zap.String("room", code))
	return nil
}

func (s *Service) GetRoom(ctx context.Context, code string) (engine.Room, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return engine.Room{}, err
	}
	doc, err := s.store.Get(ctx, code)
	if err != nil {
		return engine.Room{}, translate(err)
	}
	var room engine.Room
	if err := doc.Decode(&room); err != nil {
		return engine.Room{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return room, nil
}

// UpdateRoom applies the fields of u the caller is allowed to write and
// returns the room as stored afterwards. Unauthorized fields are dropped;
// the call fails only when none are left.
func (s *Service) UpdateRoom(ctx context.Context, code string, caller engine.Slot, u engine.Update) (engine.Room, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return engine.Room{}, err
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return engine.Room{}, err
	}

	res, err := engine.Apply(room, caller, u)
	if err != nil {
		return engine.Room{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(res.Dropped) > 0 {
		s.logger.Debug("dropped unauthorized fields",
			zap.String("room", code),
			zap.String("player", string(caller)),
			zap.Any("fields", res.Dropped))
	}

	if err := s.store.UpdatePartial(ctx, code, store.Patch(res.Patch)); err != nil {
		return engine.Room{}, translate(err)
	}
	return s.GetRoom(ctx, code)
}
