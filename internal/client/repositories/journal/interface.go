// Package journal persists signatures produced offline by qmsctl until they
// are submitted to the server.
package journal

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/client/models"
)

type Repository interface {
	// Add stores a new PENDING entry.
	Add(ctx context.Context, e *models.JournalEntry) error

	// Pending returns PENDING entries, oldest signature first.
	Pending(ctx context.Context) ([]*models.JournalEntry, error)

	// List returns the newest entries first, at most limit of them.
	List(ctx context.Context, limit int) ([]*models.JournalEntry, error)

	// MarkSubmitted records the server's answer for a PENDING entry.
	MarkSubmitted(ctx context.Context, id, artifactID, verification string, at time.Time) error

	// MarkRejected retires a PENDING entry the server refused.
	MarkRejected(ctx context.Context, id, reason string) error

	// RecordError keeps the entry PENDING but remembers the last failure.
	RecordError(ctx context.Context, id, reason string) error
}
