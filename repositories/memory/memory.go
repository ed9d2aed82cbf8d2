// Package memory keeps tournaments, participants, matches and games in
// process memory. It honours the same conditional-update contracts as the
// Postgres repositories and is used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match
	games        map[int]*models.Game

	lastTournamentID  int
	lastParticipantID int
	lastMatchID       int
	lastGameID        int
}

func NewStore() *Store {
	return &Store{
		now:          time.Now,
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[int]*models.Participant),
		matches:      make(map[int]*models.Match),
		games:        make(map[int]*models.Game),
	}
}

func (s *Store) Tournaments() repositories.TournamentRepository   { return &tournamentRepository{s} }
func (s *Store) Participants() repositories.ParticipantRepository { return &participantRepository{s} }
func (s *Store) Matches() repositories.MatchRepository            { return &matchRepository{s} }
func (s *Store) Games() repositories.GameRepository               { return &gameRepository{s} }
func (s *Store) TxManager() repositories.TxManager                { return txManager{} }

// txManager has no transactions to offer; callers serialize per tournament.
type txManager struct{}

func (txManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type tournamentRepository struct{ s *Store }

func (r *tournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	r.s.lastTournamentID++
	t.ID = r.s.lastTournamentID
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	r.s.tournaments[t.ID] = &stored
	return nil
}

func (r *tournamentRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	out := *t
	return &out, nil
}

func (r *tournamentRepository) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tournaments := make([]*models.Tournament, 0, len(r.s.tournaments))
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out := *t
		tournaments = append(tournaments, &out)
	}
	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].StartDate.Equal(tournaments[j].StartDate) {
			return tournaments[i].StartDate.Before(tournaments[j].StartDate)
		}
		return tournaments[i].ID < tournaments[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tournaments) {
			return []*models.Tournament{}, nil
		}
		tournaments = tournaments[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(tournaments) {
		tournaments = tournaments[:filter.Limit]
	}
	return tournaments, nil
}

func (r *tournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.tournaments[t.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	for id, existing := range r.s.tournaments {
		if id != t.ID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	stored.Name = t.Name
	stored.Description = t.Description
	stored.StartDate = t.StartDate
	stored.EndDate = t.EndDate
	stored.MaxPlayers = t.MaxPlayers
	stored.UpdatedAt = r.s.now()
	t.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *tournamentRepository) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[id]
	if !ok || t.Status != from {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = to
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) Complete(ctx context.Context, exec repositories.SQLExecutor, id int, winnerID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[id]
	if !ok || t.Status != models.StatusActive || t.WinnerID != nil {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = models.StatusCompleted
	t.WinnerID = &winnerID
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	t.UpdatedAt = r.s.now()
	return nil
}

type participantRepository struct{ s *Store }

func (r *participantRepository) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tournaments[p.TournamentID]; !ok {
		return repositories.ErrParticipantTournamentInvalid
	}
	for _, existing := range r.s.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	r.s.lastParticipantID++
	p.ID = r.s.lastParticipantID
	p.CreatedAt = r.s.now()
	stored := *p
	r.s.participants[p.ID] = &stored
	return nil
}

func (r *participantRepository) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.ParticipantStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[id]
	if !ok || p.Status != from {
		return repositories.ErrParticipantStatusConflict
	}
	p.Status = to
	return nil
}

func (r *participantRepository) FindByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) (*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID && p.UserID == userID {
			out := *p
			return &out, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *participantRepository) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus) ([]*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	participants := make([]*models.Participant, 0)
	for _, p := range r.s.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && p.Status != *statusFilter {
			continue
		}
		out := *p
		participants = append(participants, &out)
	}
	sort.Slice(participants, func(i, j int) bool {
		if !participants[i].CreatedAt.Equal(participants[j].CreatedAt) {
			return participants[i].CreatedAt.Before(participants[j].CreatedAt)
		}
		return participants[i].ID < participants[j].ID
	})
	return participants, nil
}

func (r *participantRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *participantRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.s.participants, id)
	return nil
}

type matchRepository struct{ s *Store }

func (r *matchRepository) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.matches {
		if existing.TournamentID == m.TournamentID && existing.Round == m.Round && existing.MatchOrder == m.MatchOrder {
			return repositories.ErrMatchConflict
		}
	}
	r.s.lastMatchID++
	m.ID = r.s.lastMatchID
	m.CreatedAt = r.s.now()
	m.UpdatedAt = m.CreatedAt
	r.s.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r *matchRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *matchRepository) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, round *int) ([]*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matches := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.TournamentID != tournamentID || (round != nil && m.Round != *round) {
			continue
		}
		matches = append(matches, cloneMatch(m))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].MatchOrder < matches[j].MatchOrder
	})
	return matches, nil
}

func (r *matchRepository) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.matches[m.ID]
	if !ok || stored.WinnerID != nil {
		return repositories.ErrMatchAlreadyResolved
	}
	stored.Player1Score = copyInt(m.Player1Score)
	stored.Player2Score = copyInt(m.Player2Score)
	stored.WinnerID = copyInt(m.WinnerID)
	stored.GameID = copyInt(m.GameID)
	stored.Status = m.Status
	stored.ReportedBy = copyInt(m.ReportedBy)
	stored.UpdatedAt = r.s.now()
	m.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *matchRepository) AssignSlot(ctx context.Context, exec repositories.SQLExecutor, matchID int, slot brackets.Slot, userID int, bye bool) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.matches[matchID]
	if !ok || stored.WinnerID != nil {
		return nil, repositories.ErrMatchAlreadyResolved
	}
	brackets.SetSlot(stored, slot, copyInt(&userID))
	stored.IsBye = bye
	if bye {
		stored.WinnerID = copyInt(&userID)
	}
	stored.Status = models.DeriveMatchStatus(stored)
	stored.UpdatedAt = r.s.now()
	return cloneMatch(stored), nil
}

type gameRepository struct{ s *Store }

func (r *gameRepository) Create(ctx context.Context, exec repositories.SQLExecutor, g *models.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.lastGameID++
	g.ID = r.s.lastGameID
	g.PlayedAt = r.s.now()
	stored := *g
	r.s.games[g.ID] = &stored
	return nil
}

func (r *gameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	out := *g
	return &out, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneMatch(m *models.Match) *models.Match {
	out := *m
	out.Player1ID = copyInt(m.Player1ID)
	out.Player2ID = copyInt(m.Player2ID)
	out.Player1Score = copyInt(m.Player1Score)
	out.Player2Score = copyInt(m.Player2Score)
	out.WinnerID = copyInt(m.WinnerID)
	out.GameID = copyInt(m.GameID)
	out.ReportedBy = copyInt(m.ReportedBy)
	return &out
}
