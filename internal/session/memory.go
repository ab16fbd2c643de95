package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// MemoryRepository keeps sessions in process memory. It backs tests and
// single-node deployments without Postgres.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*models.Session)}
}

func (r *MemoryRepository) Save(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.UpdatedAt = time.Now()
	r.sessions[session.ID] = session
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	return session, nil
}

func (r *MemoryRepository) GetAll(_ context.Context) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status models.SessionStatus) error {
	return r.mutate(id, func(s *models.Session) { s.Status = status })
}

func (r *MemoryRepository) UpdateTitle(_ context.Context, id, title string) error {
	return r.mutate(id, func(s *models.Session) { s.Title = title })
}

func (r *MemoryRepository) UpdateLatestMessage(_ context.Context, id, message string, at time.Time) error {
	return r.mutate(id, func(s *models.Session) {
		s.LatestMessage = message
		s.LatestMessageAt = at
	})
}

func (r *MemoryRepository) IncrementUnread(_ context.Context, id string) error {
	return r.mutate(id, func(s *models.Session) { s.UnreadMessageCount++ })
}

func (r *MemoryRepository) ClearUnread(_ context.Context, id string) error {
	return r.mutate(id, func(s *models.Session) { s.UnreadMessageCount = 0 })
}

func (r *MemoryRepository) AddEvent(_ context.Context, id string, event *models.Event) error {
	return r.mutate(id, func(s *models.Session) { s.Events = append(s.Events, event) })
}

func (r *MemoryRepository) SavePlan(_ context.Context, id string, plan *models.Plan) error {
	return r.mutate(id, func(s *models.Session) {
		for i, existing := range s.Plans {
			if existing.ID == plan.ID {
				s.Plans[i] = plan
				return
			}
		}
		s.Plans = append(s.Plans, plan)
	})
}

func (r *MemoryRepository) AddFile(_ context.Context, id string, file *models.File) error {
	return r.mutate(id, func(s *models.Session) { s.Files = append(s.Files, file) })
}

func (r *MemoryRepository) RemoveFile(_ context.Context, id, fileID string) error {
	return r.mutate(id, func(s *models.Session) {
		for i, f := range s.Files {
			if f.ID == fileID {
				s.Files = append(s.Files[:i:i], s.Files[i+1:]...)
				return
			}
		}
	})
}

func (r *MemoryRepository) GetFileByPath(_ context.Context, id, filepath string) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	if file := session.FileByPath(filepath); file != nil {
		return file, nil
	}
	return nil, apperr.NotFound("file %s not found in session %s", filepath, id)
}

func (r *MemoryRepository) SaveMemory(_ context.Context, id, name string, memory *models.Memory) error {
	return r.mutate(id, func(s *models.Session) {
		if s.Memories == nil {
			s.Memories = map[string]*models.Memory{}
		}
		s.Memories[name] = memory
	})
}

func (r *MemoryRepository) GetMemory(_ context.Context, id, name string) (*models.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	if memory, ok := session.Memories[name]; ok {
		return memory, nil
	}
	return &models.Memory{}, nil
}

func (r *MemoryRepository) mutate(id string, fn func(*models.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	fn(session)
	session.UpdatedAt = time.Now()
	return nil
}
