package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-tournaments/models"
)

var ErrInsufficientParticipants = errors.New("at least two participants are required to build a bracket")

// GenerateBracketParams carries the closed participant list in registration
// order. Seed 1 is the first participant.
type GenerateBracketParams struct {
	TournamentID int
	Participants []*models.Participant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// BracketMatch is a planned slot before it is persisted. Participant ids are
// user ids.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	IsBye    bool
	WinnerID *int
}

func matchUID(round, order int) string {
	return fmt.Sprintf("R%dM%d", round, order)
}

// ToModel converts the plan entry into an unsaved match row.
func (bm *BracketMatch) ToModel(tournamentID int) *models.Match {
	m := &models.Match{
		TournamentID: tournamentID,
		Round:        bm.Round,
		MatchOrder:   bm.OrderInRound,
		Player1ID:    bm.Participant1ID,
		Player2ID:    bm.Participant2ID,
		WinnerID:     bm.WinnerID,
		IsBye:        bm.IsBye,
	}
	m.Status = models.DeriveMatchStatus(m)
	return m
}
