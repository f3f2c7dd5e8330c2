package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Coordinates go over the wire as plain JSON numbers: 7, 12.5.
	decimal.MarshalJSONWithoutQuotes = true
}

type Slot string

const (
	SlotOne Slot = "slot1"
	SlotTwo Slot = "slot2"
)

// Field is the room document key holding this slot's player record.
func (s Slot) Field() string {
	switch s {
	case SlotOne:
		return "player1"
	case SlotTwo:
		return "player2"
	default:
		return ""
	}
}

func (s Slot) Valid() bool {
	return s == SlotOne || s == SlotTwo
}

type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
	StateEnded   GameState = "ended"
)

func (g GameState) Valid() bool {
	switch g {
	case StateWaiting, StatePlaying, StateEnded:
		return true
	}
	return false
}

const (
	DefaultMapType   = "original"
	DefaultHostName  = "P1"
	DefaultGuestName = "P2"
	RoomTTL          = time.Hour
)

type Position struct {
	X decimal.Decimal `json:"x"`
	Y decimal.Decimal `json:"y"`
}

// MonkeyStart is where the monkey is placed on restart.
var MonkeyStart = Position{X: decimal.NewFromInt(200), Y: decimal.NewFromInt(400)}

type Player struct {
	Name      string          `json:"name"`
	X         decimal.Decimal `json:"x"`
	Y         decimal.Decimal `json:"y"`
	Connected bool            `json:"connected"`
}

type Larry struct {
	Visible bool            `json:"visible"`
	X       decimal.Decimal `json:"x"`
	Y       decimal.Decimal `json:"y"`
	Frozen  bool            `json:"frozen"`
}

// HiddenLarry is larry's state at creation and after a restart.
var HiddenLarry = Larry{X: decimal.Zero, Y: decimal.Zero}

// Room is the shared document for one game session.
type Room struct {
	RoomCode       string    `json:"roomCode"`
	MapType        string    `json:"mapType"`
	HostPlayerID   Slot      `json:"hostPlayerId"`
	MonkeyPlayerID *Slot     `json:"monkeyPlayerId"`
	Player1        *Player   `json:"player1"`
	Player2        *Player   `json:"player2"`
	Monkey         Position  `json:"monkey"`
	Larry          Larry     `json:"larry"`
	GameState      GameState `json:"gameState"`
	Score          int       `json:"score"`
	CreatedAt      int64     `json:"createdAt"`
	ExpiresAt      int64     `json:"expiresAt"`
}

func (r Room) Player(slot Slot) *Player {
	switch slot {
	case SlotOne:
		return r.Player1
	case SlotTwo:
		return r.Player2
	default:
		return nil
	}
}

func (r Room) Occupied(slot Slot) bool {
	return r.Player(slot) != nil
}

// OccupiedSlots lists the filled slots in slot order.
func (r Room) OccupiedSlots() []Slot {
	slots := make([]Slot, 0, 2)
	for _, s := range []Slot{SlotOne, SlotTwo} {
		if r.Occupied(s) {
			slots = append(slots, s)
		}
	}
	return slots
}

func (r Room) IsMonkeyController(slot Slot) bool {
	return r.MonkeyPlayerID != nil && *r.MonkeyPlayerID == slot
}
