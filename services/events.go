package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/storage"
)

// EventPublisher pushes tournament events to live subscribers.
// brackets.Hub implements it.
type EventPublisher interface {
	PublishTournamentEvent(tournamentID int, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) PublishTournamentEvent(int, string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// BracketArchiver stores a snapshot of a finished bracket.
type BracketArchiver interface {
	Archive(ctx context.Context, bracket *models.Bracket) (string, error)
}

type storageBracketArchiver struct {
	uploader storage.FileUploader
}

// NewBracketArchiver returns nil when no uploader is configured.
func NewBracketArchiver(uploader storage.FileUploader) BracketArchiver {
	if uploader == nil {
		return nil
	}
	return &storageBracketArchiver{uploader: uploader}
}

func (a *storageBracketArchiver) Archive(ctx context.Context, bracket *models.Bracket) (string, error) {
	body, err := json.Marshal(bracket)
	if err != nil {
		return "", fmt.Errorf("failed to encode bracket of tournament %d: %w", bracket.TournamentID, err)
	}
	result, err := a.uploader.Upload(ctx, storage.BracketArchiveKey(bracket.TournamentID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return result.Key, nil
}

func archiveBracket(ctx context.Context, archiver BracketArchiver, bracket *models.Bracket, logger *slog.Logger) {
	if archiver == nil || bracket == nil {
		return
	}
	key, err := archiver.Archive(ctx, bracket)
	if err != nil {
		logger.WarnContext(ctx, "failed to archive bracket", slog.Int("tournament_id", bracket.TournamentID), slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "bracket archived", slog.Int("tournament_id", bracket.TournamentID), slog.String("key", key))
}
