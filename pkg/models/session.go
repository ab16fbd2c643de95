package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the session state machine: PENDING on creation, RUNNING
// while a task executes, WAITING when a step paused for user input,
// COMPLETED when the task finished, was cancelled, or errored.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionWaiting   SessionStatus = "waiting"
	SessionCompleted SessionStatus = "completed"
)

// Session is a conversation thread: its event history, synced files, the
// per-agent memories, and the link to the live task and sandbox. At most
// one live task exists per session.
type Session struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Status             SessionStatus      `json:"status"`
	LatestMessage      string             `json:"latest_message"`
	LatestMessageAt    time.Time          `json:"latest_message_at"`
	UnreadMessageCount int                `json:"unread_message_count"`
	TaskID             string             `json:"task_id,omitempty"`
	SandboxID          string             `json:"sandbox_id,omitempty"`
	Events             []*Event           `json:"events"`
	Files              []*File            `json:"files"`
	Memories           map[string]*Memory `json:"memories"`
	Plans              []*Plan            `json:"plans"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewSession returns a pending session with a fresh id.
func NewSession(title string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    SessionPending,
		Memories:  map[string]*Memory{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LatestPlan returns the most recent plan, or nil if none was created yet.
func (s *Session) LatestPlan() *Plan {
	if len(s.Plans) == 0 {
		return nil
	}
	return s.Plans[len(s.Plans)-1]
}

// FileByPath returns the session file with the given sandbox path, or nil.
func (s *Session) FileByPath(filepath string) *File {
	for _, f := range s.Files {
		if f.Filepath == filepath {
			return f
		}
	}
	return nil
}
