package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/pong-tournaments/brackets"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrTournamentNotFound  = fmt.Errorf("tournament %w", ErrNotFound)
	ErrMatchNotFound       = fmt.Errorf("match %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)

	// Tournament and match state errors.
	ErrInvalidState             = errors.New("operation not allowed in the current state")
	ErrDuplicateParticipant     = errors.New("user is already registered for this tournament")
	ErrInsufficientParticipants = brackets.ErrInsufficientParticipants
	ErrIllegalTransition        = errors.New("illegal status transition")
	ErrMatchAlreadyResolved     = errors.New("match is already resolved")
	ErrInvalidScore             = errors.New("invalid score")
	ErrTournamentFull           = errors.New("tournament has reached its player limit")

	// Tournament validation.
	ErrValidationFailed             = errors.New("validation failed")
	ErrTournamentNameRequired       = fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	ErrTournamentNameTooLong        = fmt.Errorf("%w: tournament name is too long", ErrValidationFailed)
	ErrTournamentDescriptionTooLong = fmt.Errorf("%w: tournament description is too long", ErrValidationFailed)
	ErrTournamentDatesRequired      = fmt.Errorf("%w: tournament start and end dates are required", ErrValidationFailed)
	ErrTournamentInvalidDateRange   = fmt.Errorf("%w: tournament end date must be after start date", ErrValidationFailed)
	ErrTournamentStartInPast        = fmt.Errorf("%w: tournament cannot start in the past", ErrValidationFailed)
	ErrTournamentInvalidCapacity    = fmt.Errorf("%w: tournament max players must be 0 or a power of two between 2 and 64", ErrValidationFailed)
	ErrTournamentNameConflict       = errors.New("tournament name already exists")

	ErrInvalidLogo     = errors.New("logo must be an image")
	ErrStorageDisabled = errors.New("file storage is not configured")
)
