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

// ParticipantService is the participant registry of a tournament.
type ParticipantService interface {
	Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	Unregister(ctx context.Context, tournamentID, userID int) error
	ListParticipants(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error)
	SetStatus(ctx context.Context, tournamentID, userID int, newStatus models.ParticipantStatus) (*models.Participant, error)
	// FindParticipant looks up a user's membership on the caller's executor.
	FindParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (*models.Participant, error)
	// SetStatusTx is SetStatus on the caller's executor. The caller holds
	// the tournament lock.
	SetStatusTx(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int, newStatus models.ParticipantStatus) (*models.Participant, error)
}

type participantService struct {
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	locks           *TournamentLocks
	publisher       EventPublisher
	logger          *slog.Logger
}

func NewParticipantService(
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		locks:           locks,
		publisher:       publisherOrNoop(publisher),
		logger:          logger,
	}
}

func (s *participantService) getTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	return t, nil
}

// Register adds the user to a pending tournament. Tournaments with
// max_players set refuse registrations beyond it; 0 means no limit.
func (s *participantService) Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: tournament %d is %s, registration requires %s", ErrInvalidState, tournamentID, t.Status, models.StatusPending)
	}

	_, err = s.participantRepo.FindByUserAndTournament(ctx, nil, userID, tournamentID)
	if err == nil {
		return nil, fmt.Errorf("%w: user %d, tournament %d", ErrDuplicateParticipant, userID, tournamentID)
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}

	if t.MaxPlayers > 0 {
		count, err := s.participantRepo.CountByTournament(ctx, tournamentID)
		if err != nil {
			return nil, fmt.Errorf("failed to count participants: %w", err)
		}
		if count >= t.MaxPlayers {
			return nil, fmt.Errorf("%w: tournament %d allows %d players", ErrTournamentFull, tournamentID, t.MaxPlayers)
		}
	}

	p := &models.Participant{
		TournamentID: tournamentID,
		UserID:       userID,
		Status:       models.ParticipantRegistered,
	}
	if err := s.participantRepo.Create(ctx, nil, p); err != nil {
		switch {
		case errors.Is(err, repositories.ErrParticipantConflict):
			return nil, fmt.Errorf("%w: user %d, tournament %d", ErrDuplicateParticipant, userID, tournamentID)
		case errors.Is(err, repositories.ErrParticipantTournamentInvalid):
			return nil, fmt.Errorf("%w: id %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	metrics.ParticipantsRegistered.Inc()
	s.logger.InfoContext(ctx, "participant registered", slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
	s.publisher.PublishTournamentEvent(tournamentID, brackets.EventParticipantRegistered, p)
	return p, nil
}

func (s *participantService) Unregister(ctx context.Context, tournamentID, userID int) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusPending {
		return fmt.Errorf("%w: tournament %d is %s, leaving requires %s", ErrInvalidState, tournamentID, t.Status, models.StatusPending)
	}

	p, err := s.participantRepo.FindByUserAndTournament(ctx, nil, userID, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return fmt.Errorf("%w: user %d, tournament %d", ErrParticipantNotFound, userID, tournamentID)
		}
		return fmt.Errorf("failed to find participant: %w", err)
	}
	if err := s.participantRepo.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return fmt.Errorf("%w: user %d, tournament %d", ErrParticipantNotFound, userID, tournamentID)
		}
		return fmt.Errorf("failed to unregister participant: %w", err)
	}

	s.logger.InfoContext(ctx, "participant unregistered", slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
	s.publisher.PublishTournamentEvent(tournamentID, brackets.EventParticipantUnregistered, p)
	return nil
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown participant status %q", ErrValidationFailed, *status)
	}
	if _, err := s.getTournament(ctx, nil, tournamentID); err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListByTournament(ctx, nil, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
	}
	return participants, nil
}

func (s *participantService) SetStatus(ctx context.Context, tournamentID, userID int, newStatus models.ParticipantStatus) (*models.Participant, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	return s.SetStatusTx(ctx, nil, tournamentID, userID, newStatus)
}

func (s *participantService) FindParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (*models.Participant, error) {
	p, err := s.participantRepo.FindByUserAndTournament(ctx, exec, userID, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, fmt.Errorf("%w: user %d, tournament %d", ErrParticipantNotFound, userID, tournamentID)
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (s *participantService) SetStatusTx(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int, newStatus models.ParticipantStatus) (*models.Participant, error) {
	p, err := s.FindParticipant(ctx, exec, tournamentID, userID)
	if err != nil {
		return nil, err
	}

	if !p.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: participant %d (user %d, tournament %d) %s -> %q",
			ErrIllegalTransition, p.ID, userID, tournamentID, p.Status, newStatus)
	}

	if err := s.participantRepo.UpdateStatus(ctx, exec, p.ID, p.Status, newStatus); err != nil {
		if errors.Is(err, repositories.ErrParticipantStatusConflict) {
			return nil, fmt.Errorf("%w: participant %d (user %d, tournament %d) changed concurrently from %s",
				ErrIllegalTransition, p.ID, userID, tournamentID, p.Status)
		}
		return nil, fmt.Errorf("failed to update participant %d status: %w", p.ID, err)
	}

	s.logger.DebugContext(ctx, "participant status changed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.String("from", string(p.Status)),
		slog.String("to", string(newStatus)),
	)
	p.Status = newStatus
	return p, nil
}
