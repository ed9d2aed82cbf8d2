package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// UploadResult describes a stored object. Size is the number of bytes read
// from the upload body.
type UploadResult struct {
	Key         string
	Location    string
	ETag        string
	ContentType string
	Size        int64
}

// FileUploader stores tournament logos and archived bracket snapshots in an
// object store. Keys are built with TournamentLogoKey and BracketArchiveKey.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// TournamentLogoKey returns a fresh key for a logo of the tournament; ext
// includes the leading dot.
func TournamentLogoKey(tournamentID int, ext string) string {
	return fmt.Sprintf("tournaments/%d/logo_%s%s", tournamentID, uuid.NewString(), ext)
}

// BracketArchiveKey returns a fresh key for a JSON snapshot of the
// tournament's bracket.
func BracketArchiveKey(tournamentID int) string {
	return fmt.Sprintf("brackets/%d/%s.json", tournamentID, uuid.NewString())
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
