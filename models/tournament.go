package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusPending   TournamentStatus = "pending"
	StatusActive    TournamentStatus = "active"
	StatusCompleted TournamentStatus = "completed"
)

var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	StatusPending:   {StatusActive},
	StatusActive:    {StatusCompleted},
	StatusCompleted: {},
}

func (s TournamentStatus) IsValid() bool {
	_, ok := tournamentTransitions[s]
	return ok
}

// CanTransitionTo reports whether the tournament may move from s to next.
// A tournament never reverts and never skips a state.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Tournament is a single-elimination Pong tournament.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	EndDate     time.Time        `json:"end_date" db:"end_date"`
	Status      TournamentStatus `json:"status" db:"status"`
	WinnerID    *int             `json:"winner_id,omitempty" db:"winner_id"`
	MaxPlayers  int              `json:"max_players" db:"max_players"`
	LogoKey     *string          `json:"-" db:"logo_key"`
	LogoURL     *string          `json:"logo_url,omitempty" db:"-"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`

	// Optional related data, never mapped directly.
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Bracket      *Bracket      `json:"bracket,omitempty" db:"-"`
}
