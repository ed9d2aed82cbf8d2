package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/metrics"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

type SubmitResultInput struct {
	MatchID    int  `json:"-"`
	Score1     int  `json:"score1"`
	Score2     int  `json:"score2"`
	ReportedBy *int `json:"-"`
}

// MatchService is the match progression engine.
type MatchService interface {
	SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error)
}

type matchService struct {
	txManager      repositories.TxManager
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	gameRepo       repositories.GameRepository
	participants   ParticipantService
	completer      TournamentCompleter
	locks          *TournamentLocks
	publisher      EventPublisher
	archiver       BracketArchiver
	logger         *slog.Logger
}

func NewMatchService(
	txManager repositories.TxManager,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	gameRepo repositories.GameRepository,
	participants ParticipantService,
	completer TournamentCompleter,
	locks *TournamentLocks,
	publisher EventPublisher,
	archiver BracketArchiver,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		txManager:      txManager,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		gameRepo:       gameRepo,
		participants:   participants,
		completer:      completer,
		locks:          locks,
		publisher:      publisherOrNoop(publisher),
		archiver:       archiver,
		logger:         logger,
	}
}

func (s *matchService) getMatch(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrMatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	return s.getMatch(ctx, nil, matchID)
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error) {
	if round != nil && *round < 1 {
		return nil, fmt.Errorf("%w: round must be positive, got %d", ErrValidationFailed, *round)
	}
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
	}
	return matches, nil
}

// submitOutcome is what a successful submission changed, collected inside
// the transaction and published after commit.
type submitOutcome struct {
	match     *models.Match
	advanced  []*models.Match
	completed bool
	winnerID  int
	bracket   *models.Bracket
}

// SubmitResult records the score of a scheduled match, eliminates the loser
// and moves the winner forward. Resolving the final completes the
// tournament.
func (s *matchService) SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error) {
	m, err := s.getMatch(ctx, nil, input.MatchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(m.TournamentID)
	defer unlock()

	var out submitOutcome
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		out, err = s.submitResultTx(ctx, exec, input)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMatchAlreadyResolved):
			metrics.MatchResults.WithLabelValues(metrics.OutcomeAlreadyResolved).Inc()
		case errors.Is(err, ErrInvalidScore), errors.Is(err, ErrInvalidState):
			metrics.MatchResults.WithLabelValues(metrics.OutcomeRejected).Inc()
		}
		return nil, err
	}

	metrics.MatchResults.WithLabelValues(metrics.OutcomeAccepted).Inc()
	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("tournament_id", out.match.TournamentID),
		slog.Int("match_id", out.match.ID),
		slog.Int("round", out.match.Round),
		slog.Int("winner_id", *out.match.WinnerID),
	)

	s.publisher.PublishTournamentEvent(out.match.TournamentID, brackets.EventMatchUpdated, out.match)
	for _, next := range out.advanced {
		s.publisher.PublishTournamentEvent(next.TournamentID, brackets.EventMatchUpdated, next)
	}
	if out.completed {
		s.publisher.PublishTournamentEvent(out.match.TournamentID, brackets.EventTournamentCompleted, map[string]int{
			"tournament_id": out.match.TournamentID,
			"winner_id":     out.winnerID,
		})
		archiveBracket(ctx, s.archiver, out.bracket, s.logger)
	}
	return out.match, nil
}

func (s *matchService) submitResultTx(ctx context.Context, exec repositories.SQLExecutor, input SubmitResultInput) (submitOutcome, error) {
	var out submitOutcome

	m, err := s.getMatch(ctx, exec, input.MatchID)
	if err != nil {
		return out, err
	}
	if m.IsResolved() {
		return out, fmt.Errorf("%w: match %d", ErrMatchAlreadyResolved, m.ID)
	}
	if input.Score1 < 0 || input.Score2 < 0 {
		return out, fmt.Errorf("%w: scores must not be negative, got %d:%d", ErrInvalidScore, input.Score1, input.Score2)
	}
	if input.Score1 == input.Score2 {
		return out, fmt.Errorf("%w: a match cannot end in a draw (%d:%d)", ErrInvalidScore, input.Score1, input.Score2)
	}

	t, err := s.tournamentRepo.GetByID(ctx, exec, m.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return out, fmt.Errorf("%w: id %d", ErrTournamentNotFound, m.TournamentID)
		}
		return out, fmt.Errorf("failed to get tournament %d: %w", m.TournamentID, err)
	}
	if t.Status != models.StatusActive {
		return out, fmt.Errorf("%w: tournament %d is %s, results require %s", ErrInvalidState, t.ID, t.Status, models.StatusActive)
	}
	if m.Player1ID == nil || m.Player2ID == nil {
		return out, fmt.Errorf("%w: match %d is %s", ErrInvalidState, m.ID, models.MatchUnscheduled)
	}

	// Both players must still be active before anything is written.
	for _, userID := range []int{*m.Player1ID, *m.Player2ID} {
		p, err := s.participants.FindParticipant(ctx, exec, m.TournamentID, userID)
		if err != nil {
			return out, err
		}
		if p.Status != models.ParticipantActive {
			return out, fmt.Errorf("%w: user %d in match %d is %s, expected %s",
				ErrIllegalTransition, userID, m.ID, p.Status, models.ParticipantActive)
		}
	}

	winner, loser := *m.Player1ID, *m.Player2ID
	if input.Score2 > input.Score1 {
		winner, loser = loser, winner
	}

	game := &models.Game{
		Player1ID:    *m.Player1ID,
		Player2ID:    *m.Player2ID,
		Player1Score: input.Score1,
		Player2Score: input.Score2,
		WinnerID:     winner,
		GameType:     models.GameTypeTournament,
	}
	if err := s.gameRepo.Create(ctx, exec, game); err != nil {
		return out, fmt.Errorf("failed to record game for match %d: %w", m.ID, err)
	}

	m.Player1Score = &input.Score1
	m.Player2Score = &input.Score2
	m.WinnerID = &winner
	m.GameID = &game.ID
	m.ReportedBy = input.ReportedBy
	m.Status = models.MatchResolved
	if err := s.matchRepo.UpdateResult(ctx, exec, m); err != nil {
		if errors.Is(err, repositories.ErrMatchAlreadyResolved) {
			return out, fmt.Errorf("%w: match %d", ErrMatchAlreadyResolved, m.ID)
		}
		return out, fmt.Errorf("failed to store result of match %d: %w", m.ID, err)
	}
	out.match = m

	if _, err := s.participants.SetStatusTx(ctx, exec, m.TournamentID, loser, models.ParticipantEliminated); err != nil {
		return out, err
	}

	matches, err := s.matchRepo.ListByTournament(ctx, exec, m.TournamentID, nil)
	if err != nil {
		return out, fmt.Errorf("failed to load bracket of tournament %d: %w", m.TournamentID, err)
	}
	bracket := models.NewBracket(m.TournamentID, matches)

	last, advanced, err := s.propagate(ctx, exec, bracket, m.Round, m.MatchOrder, winner)
	if err != nil {
		return out, err
	}
	out.advanced = advanced

	if last.Round == bracket.TotalRounds {
		if err := s.completer.Complete(ctx, exec, m.TournamentID, winner); err != nil {
			return out, err
		}
		out.completed = true
		out.winnerID = winner
		out.bracket = bracket
	}
	return out, nil
}

// propagate writes the winner of (round, order) into its next slot. When the
// other side of that slot can never be filled the next match becomes a bye
// and the winner keeps moving. It returns the last match the winner
// resolved and every match it wrote to.
func (s *matchService) propagate(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, round, order, winner int) (*models.Match, []*models.Match, error) {
	current := bracket.Match(round, order)
	var touched []*models.Match

	for current.Round < bracket.TotalRounds {
		nextRound, nextOrder, slot := brackets.NextSlot(current.Round, current.MatchOrder)
		next := bracket.Match(nextRound, nextOrder)
		if next == nil {
			return nil, nil, fmt.Errorf("bracket of tournament %d has no match at round %d order %d", bracket.TournamentID, nextRound, nextOrder)
		}

		bye := brackets.SlotIsDead(bracket, nextRound, nextOrder, slot.Sibling())
		updated, err := s.matchRepo.AssignSlot(ctx, exec, next.ID, slot, winner, bye)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchAlreadyResolved) {
				return nil, nil, fmt.Errorf("%w: next match %d", ErrMatchAlreadyResolved, next.ID)
			}
			return nil, nil, fmt.Errorf("failed to advance player %d into match %d: %w", winner, next.ID, err)
		}
		// The stored row may carry a sibling written by another transaction.
		*next = *updated
		touched = append(touched, next)

		if !bye {
			return current, touched, nil
		}
		metrics.ByesAdvanced.Inc()
		s.logger.DebugContext(ctx, "bye advanced",
			slog.Int("tournament_id", bracket.TournamentID),
			slog.Int("round", nextRound),
			slog.Int("user_id", winner),
		)
		current = next
	}
	return current, touched, nil
}
