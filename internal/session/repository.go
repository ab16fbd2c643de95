// Package session persists conversation sessions: their event history,
// files, plans, and per-agent memories.
package session

import (
	"context"
	"time"

	"github.com/haasonsaas/helmsman/pkg/models"
)

// Repository is the session persistence interface. Implementations must
// be safe for concurrent use; the task runner and the HTTP handlers
// touch the same session from different goroutines.
type Repository interface {
	// Save upserts the whole session.
	Save(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	// GetAll returns every session, most recently updated first.
	GetAll(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateTitle(ctx context.Context, id, title string) error
	// UpdateLatestMessage records the newest user-facing message for
	// session list previews.
	UpdateLatestMessage(ctx context.Context, id, message string, at time.Time) error
	IncrementUnread(ctx context.Context, id string) error
	ClearUnread(ctx context.Context, id string) error

	AddEvent(ctx context.Context, id string, event *models.Event) error
	SavePlan(ctx context.Context, id string, plan *models.Plan) error

	AddFile(ctx context.Context, id string, file *models.File) error
	RemoveFile(ctx context.Context, id, fileID string) error
	GetFileByPath(ctx context.Context, id, filepath string) (*models.File, error)

	SaveMemory(ctx context.Context, id, name string, memory *models.Memory) error
	GetMemory(ctx context.Context, id, name string) (*models.Memory, error)
}
