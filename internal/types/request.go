package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
)

var ErrMalformed = errors.New("malformed request")

// RoomRequest is one of JoinRequest, StartRequest, RestartRequest or
// UpdateRequest. A PUT /rooms/{code} body resolves to exactly one of them.
type RoomRequest interface{ isRoomRequest() }

type JoinRequest struct {
	PlayerName string
}

type StartRequest struct{}

type RestartRequest struct{}

type UpdateRequest struct {
	PlayerID engine.Slot
	Update   engine.Update
}

func (JoinRequest) isRoomRequest()    {}
func (StartRequest) isRoomRequest()   {}
func (RestartRequest) isRoomRequest() {}
func (UpdateRequest) isRoomRequest()  {}

type roomBody struct {
	Action     *string           `json:"action"`
	PlayerID   string            `json:"playerId"`
	PlayerName string            `json:"playerName"`
	MyPosition *engine.Position  `json:"myPosition"`
	Monkey     *engine.Position  `json:"monkey"`
	Larry      *engine.Larry     `json:"larry"`
	Score      *int              `json:"score"`
	GameState  *engine.GameState `json:"gameState"`
}

func (b roomBody) update() engine.Update {
	return engine.Update{
		MyPosition: b.MyPosition,
		Monkey:     b.Monkey,
		Larry:      b.Larry,
		Score:      b.Score,
		GameState:  b.GameState,
	}
}

func (b roomBody) hasFields() bool {
	return b.MyPosition != nil || b.Monkey != nil || b.Larry != nil || b.Score != nil || b.GameState != nil
}

func decodeBody(data []byte) (roomBody, error) {
	var b roomBody
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return b, nil
}

// DecodeRoomRequest resolves a PUT body. A body naming an action must not
// also carry update fields.
func DecodeRoomRequest(data []byte) (RoomRequest, error) {
	b, err := decodeBody(data)
	if err != nil {
		return nil, err
	}

	if b.Action == nil {
		return updateFrom(b)
	}
	if b.hasFields() {
		return nil, fmt.Errorf("%w: action %q cannot carry update fields", ErrMalformed, *b.Action)
	}

	switch *b.Action {
	case "join":
		return JoinRequest{PlayerName: b.PlayerName}, nil
	case "start":
		return StartRequest{}, nil
	case "restart":
		return RestartRequest{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, *b.Action)
	}
}

// DecodeUpdate reads an update body; actions are not accepted here.
func DecodeUpdate(data []byte) (UpdateRequest, error) {
	b, err := decodeBody(data)
	if err != nil {
		return UpdateRequest{}, err
	}
	if b.Action != nil {
		return UpdateRequest{}, fmt.Errorf("%w: actions are not accepted here", ErrMalformed)
	}
	return updateFrom(b)
}

func updateFrom(b roomBody) (UpdateRequest, error) {
	if b.PlayerID == "" {
		return UpdateRequest{}, fmt.Errorf("%w: playerId is required", ErrMalformed)
	}
	return UpdateRequest{PlayerID: engine.Slot(b.PlayerID), Update: b.update()}, nil
}
