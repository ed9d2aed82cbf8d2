package brackets

import "github.com/Dosada05/pong-tournaments/models"

// Slot addresses one side of a match.
type Slot int

const (
	SlotPlayer1 Slot = 1
	SlotPlayer2 Slot = 2
)

func (s Slot) Sibling() Slot {
	if s == SlotPlayer1 {
		return SlotPlayer2
	}
	return SlotPlayer1
}

// NextSlot returns where the winner of (round, order) is written.
func NextSlot(round, order int) (nextRound, nextOrder int, slot Slot) {
	slot = SlotPlayer1
	if order%2 != 0 {
		slot = SlotPlayer2
	}
	return round + 1, order / 2, slot
}

// FeederOrder returns the order, in the previous round, of the match that
// feeds the given slot.
func FeederOrder(order int, slot Slot) int {
	if slot == SlotPlayer1 {
		return 2 * order
	}
	return 2*order + 1
}

// SetSlot writes a player id into the given side of the match.
func SetSlot(m *models.Match, slot Slot, userID *int) {
	if slot == SlotPlayer1 {
		m.Player1ID = userID
		return
	}
	m.Player2ID = userID
}

// SlotIsDead reports whether a slot can never be filled: in round 1 the slot
// is empty, in later rounds its feeder is missing or is an empty bye.
func SlotIsDead(b *models.Bracket, round, order int, slot Slot) bool {
	if round <= 1 {
		m := b.Match(round, order)
		if m == nil {
			return true
		}
		if slot == SlotPlayer1 {
			return m.Player1ID == nil
		}
		return m.Player2ID == nil
	}
	feeder := b.Match(round-1, FeederOrder(order, slot))
	if feeder == nil {
		return true
	}
	return feeder.IsBye && feeder.WinnerID == nil
}
