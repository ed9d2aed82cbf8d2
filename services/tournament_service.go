package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/metrics"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/storage"
)

type CreateTournamentInput struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	MaxPlayers  int       `json:"max_players"`
}

type UpdateTournamentInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	MaxPlayers  *int       `json:"max_players"`
}

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

// TournamentCompleter finishes a tournament once its final is resolved.
// Callers hold the tournament lock.
type TournamentCompleter interface {
	Complete(ctx context.Context, exec repositories.SQLExecutor, tournamentID, winnerUserID int) error
}

// TournamentService is the lifecycle controller:
// pending --Activate--> active --final resolved--> completed.
type TournamentService interface {
	TournamentCompleter

	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	UpdateTournament(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	GetTournamentStatus(ctx context.Context, id int) (*models.Tournament, error)
	GetTournamentDetails(ctx context.Context, id int) (*models.Tournament, error)
	GetBracket(ctx context.Context, id int) (*models.Bracket, error)
	Activate(ctx context.Context, id int) (*models.Bracket, error)
	UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	txManager       repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	participants    ParticipantService
	bracketService  BracketService
	uploader        storage.FileUploader
	locks           *TournamentLocks
	publisher       EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewTournamentService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	participants ParticipantService,
	bracketService BracketService,
	uploader storage.FileUploader,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txManager:       txManager,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		participants:    participants,
		bracketService:  bracketService,
		uploader:        uploader,
		locks:           locks,
		publisher:       publisherOrNoop(publisher),
		logger:          logger,
		now:             time.Now,
	}
}

func (s *tournamentService) getTournament(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateTournamentName(input.Name); err != nil {
		return nil, err
	}
	if err := validateTournamentDescription(input.Description); err != nil {
		return nil, err
	}
	if err := validateTournamentDates(input.StartDate, input.EndDate, s.now()); err != nil {
		return nil, err
	}
	if err := validateMaxPlayers(input.MaxPlayers); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:        input.Name,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      models.StatusPending,
		MaxPlayers:  input.MaxPlayers,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, fmt.Errorf("%w: %q", ErrTournamentNameConflict, input.Name)
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.InfoContext(ctx, "tournament created", slog.Int("tournament_id", t.ID), slog.String("name", t.Name))
	return t, nil
}

// UpdateTournament edits the details of a pending tournament. Status is
// never changed here.
func (s *tournamentService) UpdateTournament(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.getTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: tournament %d is %s, only pending tournaments can be edited", ErrInvalidState, id, t.Status)
	}

	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
		if err := validateTournamentName(t.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		if err := validateTournamentDescription(input.Description); err != nil {
			return nil, err
		}
		t.Description = input.Description
	}
	if input.StartDate != nil {
		t.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		t.EndDate = *input.EndDate
	}
	if input.StartDate != nil || input.EndDate != nil {
		if err := validateTournamentDates(t.StartDate, t.EndDate, s.now()); err != nil {
			return nil, err
		}
	}
	if input.MaxPlayers != nil {
		if err := validateMaxPlayers(*input.MaxPlayers); err != nil {
			return nil, err
		}
		if *input.MaxPlayers > 0 {
			count, err := s.participantRepo.CountByTournament(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to count participants: %w", err)
			}
			if count > *input.MaxPlayers {
				return nil, fmt.Errorf("%w: tournament %d already has %d players", ErrTournamentFull, id, count)
			}
		}
		t.MaxPlayers = *input.MaxPlayers
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, id)
		case errors.Is(err, repositories.ErrTournamentNameConflict):
			return nil, fmt.Errorf("%w: %q", ErrTournamentNameConflict, t.Name)
		}
		return nil, fmt.Errorf("failed to update tournament %d: %w", id, err)
	}
	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown tournament status %q", ErrValidationFailed, *filter.Status)
	}
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for _, t := range tournaments {
		populateTournamentLogoURL(t, s.uploader)
	}
	return tournaments, nil
}

func (s *tournamentService) GetTournamentStatus(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.getTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}

// GetTournamentDetails loads the tournament with its participants and
// bracket.
func (s *tournamentService) GetTournamentDetails(ctx context.Context, id int) (*models.Tournament, error) {
	var (
		tournament   *models.Tournament
		participants []*models.Participant
		bracket      *models.Bracket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.getTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gctx, nil, id, nil)
		if err != nil {
			return fmt.Errorf("failed to list participants of tournament %d: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bracket, err = s.bracketService.GetBracket(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tournament.Participants = participantsToValues(participants)
	if bracket.TotalRounds > 0 {
		tournament.Bracket = bracket
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) GetBracket(ctx context.Context, id int) (*models.Bracket, error) {
	return s.bracketService.GetBracket(ctx, id)
}

// Activate closes registration and builds the bracket. It succeeds once per
// tournament; later calls fail with ErrInvalidState and leave the bracket
// untouched.
func (s *tournamentService) Activate(ctx context.Context, id int) (*models.Bracket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var bracket *models.Bracket
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.getTournament(ctx, exec, id)
		if err != nil {
			return err
		}
		if t.Status != models.StatusPending {
			return fmt.Errorf("%w: tournament %d is %s, activation requires %s", ErrInvalidState, id, t.Status, models.StatusPending)
		}

		registered := models.ParticipantRegistered
		participants, err := s.participantRepo.ListByTournament(ctx, exec, id, &registered)
		if err != nil {
			return fmt.Errorf("failed to list participants of tournament %d: %w", id, err)
		}

		plan, err := s.bracketService.PlanBracket(ctx, id, participants)
		if err != nil {
			return err
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, models.StatusPending, models.StatusActive); err != nil {
			if errors.Is(err, repositories.ErrTournamentStatusConflict) {
				return fmt.Errorf("%w: tournament %d was activated concurrently", ErrInvalidState, id)
			}
			return fmt.Errorf("failed to activate tournament %d: %w", id, err)
		}

		bracket, err = s.bracketService.PersistBracket(ctx, exec, id, plan)
		if err != nil {
			return err
		}

		for _, p := range participants {
			if _, err := s.participants.SetStatusTx(ctx, exec, id, p.UserID, models.ParticipantActive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TournamentsActivated.Inc()
	s.logger.InfoContext(ctx, "tournament activated", slog.Int("tournament_id", id), slog.Int("rounds", bracket.TotalRounds))
	s.publisher.PublishTournamentEvent(id, brackets.EventBracketCreated, bracket)
	return bracket, nil
}

// Complete records the winner, promotes the winning participant and
// eliminates anyone still active. Nothing is written unless the winner is
// an active participant of an active tournament.
func (s *tournamentService) Complete(ctx context.Context, exec repositories.SQLExecutor, tournamentID, winnerUserID int) error {
	t, err := s.getTournament(ctx, exec, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusActive {
		return fmt.Errorf("%w: tournament %d is %s, completion requires %s", ErrInvalidState, tournamentID, t.Status, models.StatusActive)
	}

	active := models.ParticipantActive
	remaining, err := s.participantRepo.ListByTournament(ctx, exec, tournamentID, &active)
	if err != nil {
		return fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
	}
	winnerFound := false
	for _, p := range remaining {
		if p.UserID == winnerUserID {
			winnerFound = true
			break
		}
	}
	if !winnerFound {
		return fmt.Errorf("%w: winner %d of tournament %d is not an active participant", ErrIllegalTransition, winnerUserID, tournamentID)
	}

	if err := s.tournamentRepo.Complete(ctx, exec, tournamentID, winnerUserID); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return fmt.Errorf("%w: tournament %d is not active", ErrInvalidState, tournamentID)
		}
		return fmt.Errorf("failed to complete tournament %d: %w", tournamentID, err)
	}

	for _, p := range remaining {
		next := models.ParticipantEliminated
		if p.UserID == winnerUserID {
			next = models.ParticipantWinner
		}
		if _, err := s.participants.SetStatusTx(ctx, exec, tournamentID, p.UserID, next); err != nil {
			return err
		}
	}

	metrics.TournamentsCompleted.Inc()
	s.logger.InfoContext(ctx, "tournament completed", slog.Int("tournament_id", tournamentID), slog.Int("winner_id", winnerUserID))
	return nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrStorageDisabled
	}
	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	t, err := s.getTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	key := storage.TournamentLogoKey(id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload logo of tournament %d: %w", id, err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded logo", slog.String("key", key), slog.Any("error", delErr))
		}
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, id)
		}
		return nil, fmt.Errorf("failed to save logo of tournament %d: %w", id, err)
	}

	if old := derefString(t.LogoKey); old != "" {
		if err := s.uploader.Delete(ctx, old); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous logo", slog.String("key", old), slog.Any("error", err))
		}
	}
	t.LogoKey = &key
	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}
