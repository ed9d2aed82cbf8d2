package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// BracketService turns the bracket plan into match rows and reads brackets
// back.
type BracketService interface {
	PlanBracket(ctx context.Context, tournamentID int, participants []*models.Participant) ([]*brackets.BracketMatch, error)
	PersistBracket(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, plan []*brackets.BracketMatch) (*models.Bracket, error)
	GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, error)
}

type bracketService struct {
	generator      brackets.BracketGenerator
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
}

func NewBracketService(
	generator brackets.BracketGenerator,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) BracketService {
	if generator == nil {
		generator = brackets.NewSingleEliminationGenerator()
	}
	return &bracketService{
		generator:      generator,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
	}
}

func (s *bracketService) PlanBracket(ctx context.Context, tournamentID int, participants []*models.Participant) ([]*brackets.BracketMatch, error) {
	plan, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: tournamentID,
		Participants: participants,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrInsufficientParticipants) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to generate %s bracket for tournament %d: %w", s.generator.GetName(), tournamentID, err)
	}
	return plan, nil
}

func (s *bracketService) PersistBracket(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, plan []*brackets.BracketMatch) (*models.Bracket, error) {
	matches := make([]*models.Match, 0, len(plan))
	byes := 0
	for _, bm := range plan {
		m := bm.ToModel(tournamentID)
		if err := s.matchRepo.Create(ctx, exec, m); err != nil {
			if errors.Is(err, repositories.ErrMatchConflict) {
				return nil, fmt.Errorf("%w: tournament %d already has a bracket (slot %s)", ErrInvalidState, tournamentID, bm.UID)
			}
			return nil, fmt.Errorf("failed to create match %s: %w", bm.UID, err)
		}
		if m.IsBye {
			byes++
		}
		matches = append(matches, m)
	}

	bracket := models.NewBracket(tournamentID, matches)
	s.logger.InfoContext(ctx, "bracket persisted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("rounds", bracket.TotalRounds),
		slog.Int("matches", len(matches)),
		slog.Int("byes", byes),
	)
	return bracket, nil
}

// GetBracket returns round number to matches ordered by match_order. A
// pending tournament has an empty bracket.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, error) {
	var matches []*models.Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.tournamentRepo.GetByID(gctx, nil, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return fmt.Errorf("%w: id %d", ErrTournamentNotFound, tournamentID)
			}
			return fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, nil, tournamentID, nil)
		if err != nil {
			return fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models.NewBracket(tournamentID, matches), nil
}
