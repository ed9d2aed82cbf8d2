package models

import "time"

const GameTypeTournament = "tournament"

// Game is the record of a finished Pong game. Tournament games are linked
// from their bracket slot through Match.GameID.
type Game struct {
	ID           int       `json:"id" db:"id"`
	Player1ID    int       `json:"player1_id" db:"player1_id"`
	Player2ID    int       `json:"player2_id" db:"player2_id"`
	Player1Score int       `json:"player1_score" db:"player1_score"`
	Player2Score int       `json:"player2_score" db:"player2_score"`
	WinnerID     int       `json:"winner_id" db:"winner_id"`
	GameType     string    `json:"game_type" db:"game_type"`
	PlayedAt     time.Time `json:"played_at" db:"played_at"`
}
