package services

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/storage"
)

const (
	maxTournamentNameLength        = 50
	maxTournamentDescriptionLength = 100
)

var allowedMaxPlayers = map[int]bool{0: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}

// TournamentLocks hands out one mutex per tournament id. Registration,
// activation and result submission for a tournament run under its lock.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*tournamentLock
}

type tournamentLock struct {
	mu   sync.Mutex
	refs int
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[int]*tournamentLock)}
}

// Lock blocks until the tournament's lock is held and returns the function
// that releases it. Entries are dropped once nobody holds or waits on them.
func (l *TournamentLocks) Lock(tournamentID int) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[tournamentID]
	if !ok {
		entry = &tournamentLock{}
		l.locks[tournamentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, tournamentID)
		}
		l.mu.Unlock()
	}
}

func (l *TournamentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateTournamentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrTournamentNameRequired
	}
	if utf8.RuneCountInString(name) > maxTournamentNameLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrTournamentNameTooLong, utf8.RuneCountInString(name), maxTournamentNameLength)
	}
	return nil
}

func validateTournamentDescription(description *string) error {
	if n := utf8.RuneCountInString(derefString(description)); n > maxTournamentDescriptionLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrTournamentDescriptionTooLong, n, maxTournamentDescriptionLength)
	}
	return nil
}

// validateTournamentDates compares the start against the current day, not
// the current instant, so a tournament may be created for later today.
func validateTournamentDates(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)", ErrTournamentInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	today := now.Truncate(24 * time.Hour)
	if start.Before(today) {
		return fmt.Errorf("%w: start date %s", ErrTournamentStartInPast, start.Format(time.RFC3339))
	}
	return nil
}

func validateMaxPlayers(maxPlayers int) error {
	if !allowedMaxPlayers[maxPlayers] {
		return fmt.Errorf("%w: got %d", ErrTournamentInvalidCapacity, maxPlayers)
	}
	return nil
}

func populateTournamentLogoURL(tournament *models.Tournament, uploader storage.FileUploader) {
	if tournament != nil && tournament.LogoKey != nil && *tournament.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*tournament.LogoKey)
		if url != "" {
			tournament.LogoURL = &url
		}
	}
}

func participantsToValues(slice []*models.Participant) []models.Participant {
	if slice == nil {
		return []models.Participant{}
	}
	result := make([]models.Participant, 0, len(slice))
	for _, ptr := range slice {
		if ptr != nil {
			result = append(result, *ptr)
		}
	}
	return result
}

// extensionFromContentType accepts image types only.
func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	case "image/svg+xml":
		return ".svg", nil
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidLogo, contentType)
	}
}
