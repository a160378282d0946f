package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusActive, StatusPending, StatusClosed}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusClosed:
		return true
	}
	return false
}

// ParseStatus normalizes user or backend input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return StatusActive, nil
	}
	if !s.Valid() {
		return "", fmt.Errorf("unknown case status %q", raw)
	}
	return s, nil
}

// NoDescription is shown in place of an absent case description.
const NoDescription = "No description provided"

// User is the identity handed out by the session provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the per-user account record carrying the Pro entitlement.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsPro     bool      `json:"is_pro"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Case is a user-owned legal matter.
type Case struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	FileCount   int       `json:"file_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayDescription returns the description or the placeholder when absent.
func (c Case) DisplayDescription() string {
	if strings.TrimSpace(c.Description) == "" {
		return NoDescription
	}
	return c.Description
}

// NewCase is the insert payload for a case row. ID and timestamps are
// assigned by the backend.
type NewCase struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	FileCount   int    `json:"file_count"`
}
