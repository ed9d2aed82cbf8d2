package models

import "time"

type ParticipantStatus string

const (
	ParticipantRegistered ParticipantStatus = "registered"
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantWinner     ParticipantStatus = "winner"
)

var participantTransitions = map[ParticipantStatus][]ParticipantStatus{
	ParticipantRegistered: {ParticipantActive},
	ParticipantActive:     {ParticipantEliminated, ParticipantWinner},
	ParticipantEliminated: {},
	ParticipantWinner:     {},
}

func (s ParticipantStatus) IsValid() bool {
	_, ok := participantTransitions[s]
	return ok
}

func (s ParticipantStatus) CanTransitionTo(next ParticipantStatus) bool {
	for _, allowed := range participantTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Participant is a user's membership in one tournament.
type Participant struct {
	ID           int               `json:"id" db:"id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	UserID       int               `json:"user_id" db:"user_id"`
	Status       ParticipantStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
