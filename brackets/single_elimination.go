package brackets

import (
	"context"
	"fmt"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// RoundCount returns ceil(log2(n)) for n >= 1.
func RoundCount(n int) int {
	rounds := 0
	for size := 1; size < n; size <<= 1 {
		rounds++
	}
	return rounds
}

// GenerateBracket plans the whole single-elimination tree: round 1 with
// pairings and byes, and empty slots for every later round. Byes are
// resolved in the plan and their winners already sit in round 2.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, fmt.Errorf("%w: tournament %d has %d", ErrInsufficientParticipants, params.TournamentID, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userIDs := make([]int, n)
	for i, p := range params.Participants {
		if p == nil {
			return nil, fmt.Errorf("participant at seed %d is nil", i+1)
		}
		userIDs[i] = p.UserID
	}
	seedUser := func(seed int) *int {
		id := userIDs[seed-1]
		return &id
	}

	rounds := RoundCount(n)
	size := 1 << rounds

	// Pairing i is seed i against seed size+1-i at match order i-1. An
	// opponent seed beyond n is a bye.
	plan := make(map[int][]*BracketMatch, rounds)
	for order := 0; order < size/2; order++ {
		top, bottom := order+1, size-order
		bm := &BracketMatch{
			UID:            matchUID(1, order),
			Round:          1,
			OrderInRound:   order,
			Participant1ID: seedUser(top),
		}
		if bottom <= n {
			bm.Participant2ID = seedUser(bottom)
		} else {
			bm.IsBye = true
			bm.WinnerID = bm.Participant1ID
		}
		plan[1] = append(plan[1], bm)
	}

	for round := 2; round <= rounds; round++ {
		count := size >> round
		for order := 0; order < count; order++ {
			plan[round] = append(plan[round], &BracketMatch{
				UID:          matchUID(round, order),
				Round:        round,
				OrderInRound: order,
			})
		}
	}

	// Every round-1 pairing holds a seed no greater than size/2 < n, so a
	// bye winner always meets a live slot in round 2.
	for _, bm := range plan[1] {
		if !bm.IsBye || rounds < 2 {
			continue
		}
		nextRound, nextOrder, slot := NextSlot(bm.Round, bm.OrderInRound)
		target := plan[nextRound][nextOrder]
		if slot == SlotPlayer1 {
			target.Participant1ID = bm.WinnerID
		} else {
			target.Participant2ID = bm.WinnerID
		}
	}

	result := make([]*BracketMatch, 0, size-1)
	for round := 1; round <= rounds; round++ {
		result = append(result, plan[round]...)
	}
	return result, nil
}
