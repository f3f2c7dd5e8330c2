package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewRoom builds the document for a freshly created room: the host in slot
// one at the origin, slot two empty, no monkey controller yet.
func NewRoom(code, mapType, hostName string, now time.Time, ttl time.Duration) Room {
	if mapType == "" {
		mapType = DefaultMapType
	}
	if hostName == "" {
		hostName = DefaultHostName
	}
	created := now.Unix()
	return Room{
		RoomCode:     code,
		MapType:      mapType,
		HostPlayerID: SlotOne,
		Player1:      newPlayer(hostName),
		Player2:      nil,
		Monkey:       Position{X: decimal.Zero, Y: decimal.Zero},
		Larry:        HiddenLarry,
		GameState:    StateWaiting,
		Score:        0,
		CreatedAt:    created,
		ExpiresAt:    created + int64(ttl/time.Second),
	}
}

func newPlayer(name string) *Player {
	return &Player{Name: name, X: decimal.Zero, Y: decimal.Zero, Connected: true}
}

// JoinPatch fills slot two.
func JoinPatch(name string) Patch {
	if name == "" {
		name = DefaultGuestName
	}
	return Patch{SlotTwo.Field(): *newPlayer(name)}
}

// PickMonkey chooses the monkey controller uniformly among occupied slots.
// intn must return a value in [0, n).
func PickMonkey(r Room, intn func(n int) int) Slot {
	slots := r.OccupiedSlots()
	if len(slots) == 0 {
		return r.HostPlayerID
	}
	return slots[intn(len(slots))]
}

func StartPatch(monkey Slot) Patch {
	return Patch{
		"gameState":      StatePlaying,
		"monkeyPlayerId": monkey,
	}
}

func RestartPatch(monkey Slot) Patch {
	return Patch{
		"gameState":      StatePlaying,
		"monkeyPlayerId": monkey,
		"score":          0,
		"monkey":         MonkeyStart,
		"larry":          HiddenLarry,
	}
}
