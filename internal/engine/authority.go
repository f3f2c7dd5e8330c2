package engine

type Field string

const (
	FieldMyPosition Field = "myPosition"
	FieldMonkey     Field = "monkey"
	FieldLarry      Field = "larry"
	FieldScore      Field = "score"
	FieldGameState  Field = "gameState"
)

// Requirement decides whether a role may write a field.
type Requirement func(Role) bool

var (
	OwnSlot          Requirement = func(r Role) bool { return r.Occupied }
	MonkeyController Requirement = func(r Role) bool { return r.IsMonkeyController }
	Host             Requirement = func(r Role) bool { return r.IsHost }
)

type Rule struct {
	Field    Field
	Requires Requirement
}

// Rules is the full write-authority table, evaluated in order.
var Rules = []Rule{
	{Field: FieldMyPosition, Requires: OwnSlot},
	{Field: FieldMonkey, Requires: MonkeyController},
	{Field: FieldLarry, Requires: Host},
	{Field: FieldScore, Requires: Host},
	{Field: FieldGameState, Requires: Host},
}
