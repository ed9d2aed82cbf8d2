package models

import (
	"sort"
	"time"
)

type MatchStatus string

const (
	MatchUnscheduled MatchStatus = "unscheduled"
	MatchScheduled   MatchStatus = "scheduled"
	MatchResolved    MatchStatus = "resolved"
)

// Match is one bracket slot. Player ids are user ids.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	MatchOrder   int         `json:"match_order" db:"match_order"`
	Player1ID    *int        `json:"player1_id" db:"player1_id"`
	Player2ID    *int        `json:"player2_id" db:"player2_id"`
	Player1Score *int        `json:"player1_score,omitempty" db:"player1_score"`
	Player2Score *int        `json:"player2_score,omitempty" db:"player2_score"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`
	GameID       *int        `json:"game_id,omitempty" db:"game_id"`
	IsBye        bool        `json:"is_bye" db:"is_bye"`
	Status       MatchStatus `json:"status" db:"status"`
	ReportedBy   *int        `json:"reported_by,omitempty" db:"reported_by"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

func (m *Match) IsResolved() bool {
	return m.WinnerID != nil
}

// LoserID returns the player who did not win, or nil for byes and
// unresolved matches.
func (m *Match) LoserID() *int {
	if m.WinnerID == nil || m.Player1ID == nil || m.Player2ID == nil {
		return nil
	}
	if *m.WinnerID == *m.Player1ID {
		return m.Player2ID
	}
	return m.Player1ID
}

// DeriveMatchStatus computes the state of a match from its slots.
func DeriveMatchStatus(m *Match) MatchStatus {
	switch {
	case m.WinnerID != nil:
		return MatchResolved
	case m.Player1ID != nil && m.Player2ID != nil:
		return MatchScheduled
	default:
		return MatchUnscheduled
	}
}

// Bracket is the derived view of a tournament's matches: round number to
// matches ordered by match_order.
type Bracket struct {
	TournamentID int              `json:"tournament_id"`
	TotalRounds  int              `json:"total_rounds"`
	Rounds       map[int][]*Match `json:"rounds"`
}

// NewBracket groups matches by round and sorts each round by match order.
func NewBracket(tournamentID int, matches []*Match) *Bracket {
	b := &Bracket{TournamentID: tournamentID, Rounds: make(map[int][]*Match)}
	for _, m := range matches {
		b.Rounds[m.Round] = append(b.Rounds[m.Round], m)
		if m.Round > b.TotalRounds {
			b.TotalRounds = m.Round
		}
	}
	for _, round := range b.Rounds {
		sort.Slice(round, func(i, j int) bool { return round[i].MatchOrder < round[j].MatchOrder })
	}
	return b
}

// Final returns the single match of the last round, or nil when the bracket
// is empty.
func (b *Bracket) Final() *Match {
	last := b.Rounds[b.TotalRounds]
	if len(last) != 1 {
		return nil
	}
	return last[0]
}

// Match looks up a slot by round and order.
func (b *Bracket) Match(round, order int) *Match {
	for _, m := range b.Rounds[round] {
		if m.MatchOrder == order {
			return m
		}
	}
	return nil
}
