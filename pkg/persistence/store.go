// Package persistence stores caller profiles, command history, and reminders.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no profile exists for an id.
var ErrUserNotFound = errors.New("user not found")

// UserProfile is the per-caller state the pipeline reads and the handlers update.
type UserProfile struct {
	ID                string
	Name              string
	AssistantName     string
	PreferredLanguage string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reminder is a time and message handed off by the reminder handler.
type Reminder struct {
	Time    time.Time
	Message string
	Active  bool
}

// HistoryEntry is one caller command.
type HistoryEntry struct {
	Text      string
	CreatedAt time.Time
}

// UserStore is the collaborator interface used by the pipeline and handlers.
// Writes create the caller's profile on first use.
type UserStore interface {
	FindUser(ctx context.Context, id string) (*UserProfile, error)
	AppendHistory(ctx context.Context, id, text string) error
	AppendReminder(ctx context.Context, id string, r Reminder) error
	UpdateAssistantName(ctx context.Context, id, name string) error
	UpdatePreferredLanguage(ctx context.Context, id, code string) error
	UpsertUser(ctx context.Context, u *UserProfile) error
}
