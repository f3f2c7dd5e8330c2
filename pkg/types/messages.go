// Package types holds the JSON bodies of the HTTP API.
package types

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	MapType    string `json:"mapType"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type JoinRoomResponse struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	MapType  string `json:"mapType"`
}

// ActionResponse answers start and restart.
type ActionResponse struct {
	Status         string `json:"status"` // "started" | "restarted"
	MonkeyPlayerID string `json:"monkeyPlayerId"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SaveScoreRequest struct {
	PlayerName string `json:"playerName"`
	Score      *int   `json:"score"`
}

type SaveScoreResponse struct {
	Message string `json:"message"`
	ScoreID string `json:"scoreId"`
}

type ScoreEntry struct {
	ID         string `json:"id"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	Timestamp  string `json:"timestamp"`
}

type ScoresResponse struct {
	Scores []ScoreEntry `json:"scores"`
}
