package engine

import (
	"errors"
)

var ErrNoUpdates = errors.New("no updates provided")
var ErrInvalidGameState = errors.New("invalid game state")
var ErrNegativeScore = errors.New("score must not be negative")

// Patch maps dotted document paths ("player1.x") to their new values.
type Patch map[string]any

// Update is the sparse set of fields a client sends on each tick.
type Update struct {
	MyPosition *Position
	Monkey     *Position
	Larry      *Larry
	Score      *int
	GameState  *GameState
}

// Role is what the caller is allowed to be in a given room.
type Role struct {
	Caller             Slot
	Occupied           bool
	IsHost             bool
	IsMonkeyController bool
}

func RoleFor(r Room, caller Slot) Role {
	return Role{
		Caller:             caller,
		Occupied:           caller.Valid() && r.Occupied(caller),
		IsHost:             caller == r.HostPlayerID,
		IsMonkeyController: r.IsMonkeyController(caller),
	}
}

// Result reports which present fields were written and which were dropped.
type Result struct {
	Patch   Patch
	Applied []Field
	Dropped []Field
}

// Apply evaluates every present field of u against Rules and returns the
// patch built from the fields the caller may write. Dropped fields are not
// an error and are never validated; ErrNoUpdates is returned only when
// nothing survives.
func Apply(r Room, caller Slot, u Update) (Result, error) {
	role := RoleFor(r, caller)
	res := Result{Patch: Patch{}}

	for _, rule := range Rules {
		if !rule.present(u) {
			continue
		}
		if !rule.Requires(role) {
			res.Dropped = append(res.Dropped, rule.Field)
			continue
		}
		if err := rule.validate(u); err != nil {
			return Result{}, err
		}
		rule.write(role, u, res.Patch)
		res.Applied = append(res.Applied, rule.Field)
	}

	if len(res.Patch) == 0 {
		return res, ErrNoUpdates
	}
	return res, nil
}

func (rule Rule) present(u Update) bool {
	switch rule.Field {
	case FieldMyPosition:
		return u.MyPosition != nil
	case FieldMonkey:
		return u.Monkey != nil
	case FieldLarry:
		return u.Larry != nil
	case FieldScore:
		return u.Score != nil
	case FieldGameState:
		return u.GameState != nil
	}
	return false
}

func (rule Rule) validate(u Update) error {
	switch rule.Field {
	case FieldScore:
		if *u.Score < 0 {
			return ErrNegativeScore
		}
	case FieldGameState:
		if !u.GameState.Valid() {
			return ErrInvalidGameState
		}
	}
	return nil
}

func (rule Rule) write(role Role, u Update, p Patch) {
	switch rule.Field {
	case FieldMyPosition:
		// Always the caller's own record, never a slot named in the payload.
		base := role.Caller.Field()
		p[base+".x"] = u.MyPosition.X
		p[base+".y"] = u.MyPosition.Y
	case FieldMonkey:
		p["monkey"] = *u.Monkey
	case FieldLarry:
		p["larry"] = *u.Larry
	case FieldScore:
		p["score"] = *u.Score
	case FieldGameState:
		p["gameState"] = *u.GameState
	}
}
