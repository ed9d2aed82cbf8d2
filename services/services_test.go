package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories/memory"
	"github.com/Dosada05/pong-tournaments/storage"
)

type recordedEvent struct {
	TournamentID int
	Type         string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishTournamentEvent(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{TournamentID: tournamentID, Type: eventType})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = body
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key), ContentType: contentType, Size: int64(len(body))}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type testEnv struct {
	store        *memory.Store
	publisher    *recordingPublisher
	uploader     *fakeUploader
	participants ParticipantService
	brackets     BracketService
	tournaments  TournamentService
	matches      MatchService
	now          time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	locks := NewTournamentLocks()
	publisher := &recordingPublisher{}
	uploader := newFakeUploader()

	participants := NewParticipantService(store.Participants(), store.Tournaments(), locks, publisher, logger)
	bracketSvc := NewBracketService(nil, store.Matches(), store.Tournaments(), logger)
	tournaments := NewTournamentService(store.TxManager(), store.Tournaments(), store.Participants(), participants, bracketSvc, uploader, locks, publisher, logger)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	tournaments.(*tournamentService).now = func() time.Time { return now }
	matches := NewMatchService(store.TxManager(), store.Matches(), store.Tournaments(), store.Games(), participants, tournaments, locks, publisher, NewBracketArchiver(uploader), logger)

	return &testEnv{
		store:        store,
		publisher:    publisher,
		uploader:     uploader,
		participants: participants,
		brackets:     bracketSvc,
		tournaments:  tournaments,
		matches:      matches,
		now:          now,
	}
}

func (e *testEnv) createTournament(t *testing.T, name string, maxPlayers int) *models.Tournament {
	t.Helper()
	tournament, err := e.tournaments.CreateTournament(context.Background(), CreateTournamentInput{
		Name:       name,
		StartDate:  e.now.Add(24 * time.Hour),
		EndDate:    e.now.Add(48 * time.Hour),
		MaxPlayers: maxPlayers,
	})
	require.NoError(t, err)
	return tournament
}

// startTournament registers users 1..n in order and activates.
func (e *testEnv) startTournament(t *testing.T, n int) (*models.Tournament, *models.Bracket) {
	t.Helper()
	ctx := context.Background()
	tournament := e.createTournament(t, fmt.Sprintf("Cup %d", n), 0)
	for userID := 1; userID <= n; userID++ {
		_, err := e.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
	}
	bracket, err := e.tournaments.Activate(ctx, tournament.ID)
	require.NoError(t, err)
	return tournament, bracket
}

func (e *testEnv) participantStatus(t *testing.T, tournamentID, userID int) models.ParticipantStatus {
	t.Helper()
	p, err := e.store.Participants().FindByUserAndTournament(context.Background(), nil, userID, tournamentID)
	require.NoError(t, err)
	return p.Status
}

func (e *testEnv) match(t *testing.T, tournamentID, round, order int) *models.Match {
	t.Helper()
	bracket, err := e.brackets.GetBracket(context.Background(), tournamentID)
	require.NoError(t, err)
	m := bracket.Match(round, order)
	require.NotNil(t, m, "round %d order %d", round, order)
	return m
}

func intPtr(v int) *int { return &v }

func TestTournamentLocks(t *testing.T) {
	locks := NewTournamentLocks()

	unlock := locks.Lock(1)
	acquired := make(chan struct{})
	go func() {
		release := locks.Lock(1)
		close(acquired)
		release()
	}()

	otherUnlock := locks.Lock(2)
	otherUnlock()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
	assert.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCreateTournament_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	longDescription := string(bytes.Repeat([]byte("d"), 101))

	tests := []struct {
		name    string
		input   CreateTournamentInput
		wantErr error
	}{
		{
			name:    "empty name",
			input:   CreateTournamentInput{Name: "  ", StartDate: env.now.Add(time.Hour), EndDate: env.now.Add(2 * time.Hour)},
			wantErr: ErrTournamentNameRequired,
		},
		{
			name:    "name too long",
			input:   CreateTournamentInput{Name: string(bytes.Repeat([]byte("n"), 51)), StartDate: env.now.Add(time.Hour), EndDate: env.now.Add(2 * time.Hour)},
			wantErr: ErrTournamentNameTooLong,
		},
		{
			name:    "description too long",
			input:   CreateTournamentInput{Name: "Open", Description: &longDescription, StartDate: env.now.Add(time.Hour), EndDate: env.now.Add(2 * time.Hour)},
			wantErr: ErrTournamentDescriptionTooLong,
		},
		{
			name:    "missing dates",
			input:   CreateTournamentInput{Name: "Open"},
			wantErr: ErrTournamentDatesRequired,
		},
		{
			name:    "end before start",
			input:   CreateTournamentInput{Name: "Open", StartDate: env.now.Add(2 * time.Hour), EndDate: env.now.Add(time.Hour)},
			wantErr: ErrTournamentInvalidDateRange,
		},
		{
			name:    "start yesterday",
			input:   CreateTournamentInput{Name: "Open", StartDate: env.now.Add(-24 * time.Hour), EndDate: env.now.Add(time.Hour)},
			wantErr: ErrTournamentStartInPast,
		},
		{
			name:    "capacity not a power of two",
			input:   CreateTournamentInput{Name: "Open", StartDate: env.now.Add(time.Hour), EndDate: env.now.Add(2 * time.Hour), MaxPlayers: 6},
			wantErr: ErrTournamentInvalidCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tournaments.CreateTournament(ctx, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}

	t.Run("earlier today is accepted", func(t *testing.T) {
		tournament, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{
			Name:      "Morning Cup",
			StartDate: env.now.Add(-2 * time.Hour),
			EndDate:   env.now.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, tournament.Status)
	})

	t.Run("duplicate name", func(t *testing.T) {
		env.createTournament(t, "Spring Open", 0)
		_, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{
			Name:      "Spring Open",
			StartDate: env.now.Add(time.Hour),
			EndDate:   env.now.Add(2 * time.Hour),
		})
		assert.ErrorIs(t, err, ErrTournamentNameConflict)
	})
}

func TestUpdateTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "Summer Cup", 0)

	updated, err := env.tournaments.UpdateTournament(ctx, tournament.ID, UpdateTournamentInput{
		Name:       strPtr("Summer Cup II"),
		MaxPlayers: intPtr(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer Cup II", updated.Name)
	assert.Equal(t, 4, updated.MaxPlayers)
	assert.Equal(t, models.StatusPending, updated.Status)

	for userID := 1; userID <= 3; userID++ {
		_, err := env.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
	}
	_, err = env.tournaments.UpdateTournament(ctx, tournament.ID, UpdateTournamentInput{MaxPlayers: intPtr(2)})
	assert.ErrorIs(t, err, ErrTournamentFull)

	_, err = env.tournaments.Activate(ctx, tournament.ID)
	require.NoError(t, err)
	_, err = env.tournaments.UpdateTournament(ctx, tournament.ID, UpdateTournamentInput{Name: strPtr("Renamed")})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.tournaments.UpdateTournament(ctx, 999, UpdateTournamentInput{Name: strPtr("Ghost")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func strPtr(s string) *string { return &s }

func TestListTournaments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startTournament(t, 2)
	env.createTournament(t, "Pending One", 0)

	all, err := env.tournaments.ListTournaments(ctx, ListTournamentsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := models.StatusActive
	onlyActive, err := env.tournaments.ListTournaments(ctx, ListTournamentsFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, models.StatusActive, onlyActive[0].Status)

	bogus := models.TournamentStatus("paused")
	_, err = env.tournaments.ListTournaments(ctx, ListTournamentsFilter{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registration order is kept", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Order Cup", 0)
		for _, userID := range []int{30, 10, 20} {
			p, err := env.participants.Register(ctx, tournament.ID, userID)
			require.NoError(t, err)
			assert.Equal(t, models.ParticipantRegistered, p.Status)
		}
		list, err := env.participants.ListParticipants(ctx, tournament.ID, nil)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []int{30, 10, 20}, []int{list[0].UserID, list[1].UserID, list[2].UserID})
		assert.Equal(t, []string{
			brackets.EventParticipantRegistered,
			brackets.EventParticipantRegistered,
			brackets.EventParticipantRegistered,
		}, env.publisher.types())
	})

	t.Run("duplicate", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Dup Cup", 0)
		_, err := env.participants.Register(ctx, tournament.ID, 1)
		require.NoError(t, err)
		_, err = env.participants.Register(ctx, tournament.ID, 1)
		assert.ErrorIs(t, err, ErrDuplicateParticipant)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.participants.Register(ctx, 42, 1)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not pending", func(t *testing.T) {
		env := newTestEnv(t)
		tournament, _ := env.startTournament(t, 2)
		_, err := env.participants.Register(ctx, tournament.ID, 99)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("capacity", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Small Cup", 2)
		_, err := env.participants.Register(ctx, tournament.ID, 1)
		require.NoError(t, err)
		_, err = env.participants.Register(ctx, tournament.ID, 2)
		require.NoError(t, err)
		_, err = env.participants.Register(ctx, tournament.ID, 3)
		assert.ErrorIs(t, err, ErrTournamentFull)
	})

	t.Run("concurrent duplicates", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Race Cup", 0)
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.participants.Register(ctx, tournament.ID, 7)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateParticipant)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestUnregister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "Leave Cup", 0)

	_, err := env.participants.Register(ctx, tournament.ID, 1)
	require.NoError(t, err)
	require.NoError(t, env.participants.Unregister(ctx, tournament.ID, 1))

	err = env.participants.Unregister(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	started, _ := env.startTournament(t, 2)
	err = env.participants.Unregister(ctx, started.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSetStatus_Transitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "Status Cup", 0)
	_, err := env.participants.Register(ctx, tournament.ID, 1)
	require.NoError(t, err)

	_, err = env.participants.SetStatus(ctx, tournament.ID, 1, models.ParticipantWinner)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	p, err := env.participants.SetStatus(ctx, tournament.ID, 1, models.ParticipantActive)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantActive, p.Status)

	p, err = env.participants.SetStatus(ctx, tournament.ID, 1, models.ParticipantEliminated)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantEliminated, p.Status)

	_, err = env.participants.SetStatus(ctx, tournament.ID, 1, models.ParticipantActive)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = env.participants.SetStatus(ctx, tournament.ID, 2, models.ParticipantActive)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestActivate(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient participants", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Lonely Cup", 0)
		_, err := env.participants.Register(ctx, tournament.ID, 1)
		require.NoError(t, err)

		_, err = env.tournaments.Activate(ctx, tournament.ID)
		assert.ErrorIs(t, err, ErrInsufficientParticipants)

		status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, status.Status)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.tournaments.Activate(ctx, 77)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("activates participants and builds the bracket once", func(t *testing.T) {
		env := newTestEnv(t)
		tournament, bracket := env.startTournament(t, 4)

		assert.Equal(t, 2, bracket.TotalRounds)
		assert.Len(t, bracket.Rounds[1], 2)
		assert.Len(t, bracket.Rounds[2], 1)
		for userID := 1; userID <= 4; userID++ {
			assert.Equal(t, models.ParticipantActive, env.participantStatus(t, tournament.ID, userID))
		}
		assert.Contains(t, env.publisher.types(), brackets.EventBracketCreated)

		_, err := env.tournaments.Activate(ctx, tournament.ID)
		assert.ErrorIs(t, err, ErrInvalidState)

		matches, err := env.store.Matches().ListByTournament(ctx, nil, tournament.ID, nil)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("concurrent activation succeeds once", func(t *testing.T) {
		env := newTestEnv(t)
		tournament := env.createTournament(t, "Race Activate", 0)
		for userID := 1; userID <= 5; userID++ {
			_, err := env.participants.Register(ctx, tournament.ID, userID)
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.tournaments.Activate(ctx, tournament.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidState)
		}
		assert.Equal(t, 1, succeeded)

		matches, err := env.store.Matches().ListByTournament(ctx, nil, tournament.ID, nil)
		require.NoError(t, err)
		assert.Len(t, matches, 7)
	})
}

func TestActivate_ByesForTopSeeds(t *testing.T) {
	env := newTestEnv(t)
	tournament, bracket := env.startTournament(t, 5)

	assert.Equal(t, 3, bracket.TotalRounds)
	require.Len(t, bracket.Rounds[1], 4)
	assert.Len(t, bracket.Rounds[2], 2)
	assert.Len(t, bracket.Rounds[3], 1)

	byeWinners := map[int]bool{}
	for _, m := range bracket.Rounds[1] {
		if m.IsBye {
			require.NotNil(t, m.WinnerID)
			assert.Equal(t, models.MatchResolved, m.Status)
			byeWinners[*m.WinnerID] = true
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, byeWinners)

	// Seed 4 plays seed 5 in the last pairing; seed 3 waits for the winner.
	played := bracket.Match(1, 3)
	require.NotNil(t, played)
	assert.Equal(t, 4, *played.Player1ID)
	assert.Equal(t, 5, *played.Player2ID)
	assert.Equal(t, models.MatchScheduled, played.Status)

	top := env.match(t, tournament.ID, 2, 0)
	assert.Equal(t, 1, *top.Player1ID)
	assert.Equal(t, 2, *top.Player2ID)
	assert.Equal(t, models.MatchScheduled, top.Status)

	bottom := env.match(t, tournament.ID, 2, 1)
	assert.Equal(t, 3, *bottom.Player1ID)
	assert.Nil(t, bottom.Player2ID)
	assert.Equal(t, models.MatchUnscheduled, bottom.Status)
}

func TestSubmitResult_ThreePlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, bracket := env.startTournament(t, 3)

	bye := bracket.Match(1, 0)
	require.NotNil(t, bye)
	assert.True(t, bye.IsBye)
	assert.Equal(t, 1, *bye.WinnerID)

	semi := bracket.Match(1, 1)
	require.NotNil(t, semi)
	assert.Equal(t, 2, *semi.Player1ID)
	assert.Equal(t, 3, *semi.Player2ID)

	resolved, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: semi.ID, Score1: 11, Score2: 7, ReportedBy: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, *resolved.WinnerID)
	require.NotNil(t, resolved.GameID)
	assert.Equal(t, models.ParticipantEliminated, env.participantStatus(t, tournament.ID, 3))

	game, err := env.store.Games().GetByID(ctx, *resolved.GameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameTypeTournament, game.GameType)
	assert.Equal(t, 2, game.WinnerID)

	final := env.match(t, tournament.ID, 2, 0)
	assert.Equal(t, 1, *final.Player1ID)
	assert.Equal(t, 2, *final.Player2ID)
	assert.Equal(t, models.MatchScheduled, final.Status)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 11, Score2: 9})
	require.NoError(t, err)

	status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	require.NotNil(t, status.WinnerID)
	assert.Equal(t, 1, *status.WinnerID)

	assert.Equal(t, models.ParticipantWinner, env.participantStatus(t, tournament.ID, 1))
	assert.Equal(t, models.ParticipantEliminated, env.participantStatus(t, tournament.ID, 2))
	assert.Equal(t, models.ParticipantEliminated, env.participantStatus(t, tournament.ID, 3))

	assert.Contains(t, env.publisher.types(), brackets.EventTournamentCompleted)
	env.uploader.mu.Lock()
	assert.Len(t, env.uploader.objects, 1, "completed bracket is archived")
	env.uploader.mu.Unlock()

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 3, Score2: 11})
	assert.ErrorIs(t, err, ErrMatchAlreadyResolved)
}

func TestSubmitResult_FourPlayersPropagation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, bracket := env.startTournament(t, 4)

	first := bracket.Match(1, 0)
	second := bracket.Match(1, 1)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, []int{1, 4}, []int{*first.Player1ID, *first.Player2ID})
	assert.Equal(t, []int{2, 3}, []int{*second.Player1ID, *second.Player2ID})

	_, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: second.ID, Score1: 5, Score2: 11})
	require.NoError(t, err)
	final := env.match(t, tournament.ID, 2, 0)
	assert.Nil(t, final.Player1ID)
	assert.Equal(t, 3, *final.Player2ID)
	assert.Equal(t, models.MatchUnscheduled, final.Status)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 11, Score2: 2})
	assert.ErrorIs(t, err, ErrInvalidState, "final is not scheduled yet")

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: first.ID, Score1: 11, Score2: 4})
	require.NoError(t, err)
	final = env.match(t, tournament.ID, 2, 0)
	assert.Equal(t, 1, *final.Player1ID)
	assert.Equal(t, 3, *final.Player2ID)
	assert.Equal(t, models.MatchScheduled, final.Status)

	status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, status.Status)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 8, Score2: 11})
	require.NoError(t, err)

	status, err = env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 3, *status.WinnerID)
	for userID, want := range map[int]models.ParticipantStatus{
		1: models.ParticipantEliminated,
		2: models.ParticipantEliminated,
		3: models.ParticipantWinner,
		4: models.ParticipantEliminated,
	} {
		assert.Equal(t, want, env.participantStatus(t, tournament.ID, userID), "user %d", userID)
	}
}

func (e *testEnv) statusCounts(t *testing.T, tournamentID int) map[models.ParticipantStatus]int {
	t.Helper()
	participants, err := e.participants.ListParticipants(context.Background(), tournamentID, nil)
	require.NoError(t, err)
	counts := make(map[models.ParticipantStatus]int)
	for _, p := range participants {
		counts[p.Status]++
	}
	return counts
}

// requireBracketShape checks that every round holds ceil(previous/2) matches
// with contiguous orders, ending in a single final.
func (e *testEnv) requireBracketShape(t *testing.T, tournamentID int) *models.Bracket {
	t.Helper()
	bracket, err := e.brackets.GetBracket(context.Background(), tournamentID)
	require.NoError(t, err)
	for r := 1; r <= bracket.TotalRounds; r++ {
		if r > 1 {
			require.Len(t, bracket.Rounds[r], (len(bracket.Rounds[r-1])+1)/2, "round %d", r)
		}
		for i, m := range bracket.Rounds[r] {
			require.Equal(t, i, m.MatchOrder, "round %d", r)
			require.Equal(t, models.DeriveMatchStatus(m), m.Status, "round %d order %d", r, i)
		}
	}
	require.Len(t, bracket.Rounds[bracket.TotalRounds], 1)
	return bracket
}

func TestSubmitResult_FivePlayersWithByesToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.startTournament(t, 5)
	env.requireBracketShape(t, tournament.ID)

	steps := []struct {
		name       string
		round      int
		order      int
		score1     int
		score2     int
		winner     int
		loser      int
		nextRound  int
		nextOrder  int
		nextStatus models.MatchStatus
	}{
		{"bye winners meet in round two", 2, 0, 11, 6, 1, 2, 3, 0, models.MatchUnscheduled},
		{"only played first round match", 1, 3, 9, 11, 5, 4, 2, 1, models.MatchScheduled},
		{"bye winner plays the first round winner", 2, 1, 7, 11, 5, 3, 3, 0, models.MatchScheduled},
		{"final", 3, 0, 10, 12, 5, 1, 0, 0, ""},
	}

	alive := 5
	for i, step := range steps {
		m := env.match(t, tournament.ID, step.round, step.order)
		require.Equal(t, models.MatchScheduled, m.Status, step.name)

		resolved, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, Score1: step.score1, Score2: step.score2})
		require.NoError(t, err, step.name)
		assert.Equal(t, step.winner, *resolved.WinnerID, step.name)
		assert.Equal(t, models.ParticipantEliminated, env.participantStatus(t, tournament.ID, step.loser), step.name)
		alive--

		env.requireBracketShape(t, tournament.ID)
		counts := env.statusCounts(t, tournament.ID)
		assert.Equal(t, 5-alive, counts[models.ParticipantEliminated], step.name)
		assert.Zero(t, counts[models.ParticipantRegistered], step.name)

		status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
		require.NoError(t, err)
		if i < len(steps)-1 {
			assert.Equal(t, models.StatusActive, status.Status, step.name)
			assert.Equal(t, alive, counts[models.ParticipantActive], step.name)
			assert.Zero(t, counts[models.ParticipantWinner], step.name)

			next := env.match(t, tournament.ID, step.nextRound, step.nextOrder)
			assert.Equal(t, step.nextStatus, next.Status, step.name)
			continue
		}

		assert.Equal(t, models.StatusCompleted, status.Status)
		require.NotNil(t, status.WinnerID)
		assert.Equal(t, 5, *status.WinnerID)
		assert.Equal(t, map[models.ParticipantStatus]int{
			models.ParticipantWinner:     1,
			models.ParticipantEliminated: 4,
		}, counts)
		assert.Equal(t, models.ParticipantWinner, env.participantStatus(t, tournament.ID, 5))
	}

	final := env.match(t, tournament.ID, 3, 0)
	assert.Equal(t, []int{1, 5}, []int{*final.Player1ID, *final.Player2ID})
}

func TestSubmitResult_TwoPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, bracket := env.startTournament(t, 2)

	require.Equal(t, 1, bracket.TotalRounds)
	final := bracket.Final()
	require.NotNil(t, final)

	_, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 11, Score2: 0})
	require.NoError(t, err)

	status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 1, *status.WinnerID)
}

func TestSubmitResult_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, bracket := env.startTournament(t, 4)
	m := bracket.Match(1, 0)
	require.NotNil(t, m)

	tests := []struct {
		name    string
		input   SubmitResultInput
		wantErr error
	}{
		{name: "draw", input: SubmitResultInput{MatchID: m.ID, Score1: 5, Score2: 5}, wantErr: ErrInvalidScore},
		{name: "negative", input: SubmitResultInput{MatchID: m.ID, Score1: -1, Score2: 3}, wantErr: ErrInvalidScore},
		{name: "unknown match", input: SubmitResultInput{MatchID: 9999, Score1: 11, Score2: 3}, wantErr: ErrMatchNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.matches.SubmitResult(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	current, err := env.matches.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, current.WinnerID, "rejected results leave the match untouched")
}

func TestSubmitResult_ConcurrentSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, bracket := env.startTournament(t, 4)
	m := bracket.Match(1, 1)
	require.NotNil(t, m)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	scores := [][2]int{{11, 3}, {3, 11}}
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, Score1: scores[i][0], Score2: scores[i][1]})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrMatchAlreadyResolved):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	final := env.match(t, tournament.ID, 2, 0)
	require.NotNil(t, final.Player2ID)
	assert.Contains(t, []int{2, 3}, *final.Player2ID)
}

func TestGetBracket_PendingTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "No Bracket", 0)

	_, err := env.matches.ListMatches(ctx, tournament.ID, nil)
	require.NoError(t, err)

	bracket, err := env.tournaments.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, bracket.TotalRounds)
	assert.Empty(t, bracket.Rounds)
}

func TestComplete_RequiresActiveTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "Not Yet", 0)

	err := env.tournaments.Complete(ctx, nil, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_RejectsInactiveWinnerWithoutWriting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.startTournament(t, 2)

	err := env.tournaments.Complete(ctx, nil, tournament.ID, 42)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, status.Status)
	assert.Nil(t, status.WinnerID)
	assert.Equal(t, models.ParticipantActive, env.participantStatus(t, tournament.ID, 1))
	assert.Equal(t, models.ParticipantActive, env.participantStatus(t, tournament.ID, 2))
}

func TestSubmitResult_PlayerNotActiveLeavesNoPartialState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, bracket := env.startTournament(t, 2)
	final := bracket.Match(1, 0)
	require.NotNil(t, final)

	// Knock user 1 out behind the engine's back.
	p, err := env.store.Participants().FindByUserAndTournament(ctx, nil, 1, tournament.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Participants().UpdateStatus(ctx, nil, p.ID, models.ParticipantActive, models.ParticipantEliminated))

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, Score1: 11, Score2: 3})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	current, err := env.matches.GetMatch(ctx, final.ID)
	require.NoError(t, err)
	assert.Nil(t, current.WinnerID)
	assert.Nil(t, current.GameID)
	assert.Equal(t, models.MatchScheduled, current.Status)
	assert.Equal(t, models.ParticipantActive, env.participantStatus(t, tournament.ID, 2))

	status, err := env.tournaments.GetTournamentStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, status.Status)

	_, err = env.store.Games().GetByID(ctx, 1)
	assert.Error(t, err, "no game is recorded for a rejected result")
}

func TestGetTournamentDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.startTournament(t, 3)

	details, err := env.tournaments.GetTournamentDetails(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, details.Participants, 3)
	require.NotNil(t, details.Bracket)
	assert.Equal(t, 2, details.Bracket.TotalRounds)

	_, err = env.tournaments.GetTournamentDetails(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.startTournament(t, 8)

	round := 1
	first, err := env.matches.ListMatches(ctx, tournament.ID, &round)
	require.NoError(t, err)
	assert.Len(t, first, 4)

	all, err := env.matches.ListMatches(ctx, tournament.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	zero := 0
	_, err = env.matches.ListMatches(ctx, tournament.ID, &zero)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUploadLogo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, "Logo Cup", 0)

	_, err := env.tournaments.UploadLogo(ctx, tournament.ID, "text/plain", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrInvalidLogo)

	first, err := env.tournaments.UploadLogo(ctx, tournament.ID, "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	require.NotNil(t, first.LogoURL)
	assert.Contains(t, *first.LogoURL, fmt.Sprintf("tournaments/%d/logo_", tournament.ID))

	second, err := env.tournaments.UploadLogo(ctx, tournament.ID, "image/jpeg", bytes.NewReader([]byte("jpg")))
	require.NoError(t, err)
	assert.NotEqual(t, *first.LogoURL, *second.LogoURL)

	env.uploader.mu.Lock()
	defer env.uploader.mu.Unlock()
	assert.Equal(t, []string{*first.LogoKey}, env.uploader.deleted)
	assert.Len(t, env.uploader.objects, 1)
}
