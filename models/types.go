// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"slices"
	"time"
)

// RoundVersion is the schema version written with every persisted round.
const RoundVersion = 2

// DateLayout is the layout of Round.Date.
const DateLayout = "2006-01-02"

// Trigger kinds
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerBootstrap = "bootstrap"
)

// Submission is one participant's image for a round.
type Submission struct {
	MemberID    string    `json:"member_id"`
	ImageRef    string    `json:"image_ref"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Round is the single active round. A nil *Round means idle.
type Round struct {
	Version      int          `json:"version"`
	ID           string       `json:"id"`
	Theme        string       `json:"theme"`
	Date         string       `json:"date"`
	OpenedAt     time.Time    `json:"opened_at"`
	Trigger      string       `json:"trigger"`
	StarterID    string       `json:"starter_id,omitempty"`
	Participants []string     `json:"participants"`
	Submissions  []Submission `json:"submissions"`
}

// IsOpen reports whether the round accepts submissions.
func (r *Round) IsOpen() bool {
	return r != nil && r.Theme != ""
}

// IsParticipant reports whether memberID may submit to the round.
func (r *Round) IsParticipant(memberID string) bool {
	return slices.Contains(r.Participants, memberID)
}

// Submission returns the submission made by memberID, if any.
func (r *Round) Submission(memberID string) (Submission, bool) {
	for _, s := range r.Submissions {
		if s.MemberID == memberID {
			return s, true
		}
	}
	return Submission{}, false
}

// Entries returns submissions keyed by member.
func (r *Round) Entries() map[string]string {
	entries := make(map[string]string, len(r.Submissions))
	for _, s := range r.Submissions {
		entries[s.MemberID] = s.ImageRef
	}
	return entries
}

// MemberStreak is a stored per-member counter.
type MemberStreak struct {
	MemberID string `json:"member_id"`
	Streak   int    `json:"streak"`
}

// Summary is produced when a round closes.
type Summary struct {
	RoundID  string `json:"round_id"`
	Theme    string `json:"theme"`
	Date     string `json:"date"`
	Empty    bool   `json:"empty"`
	Previous int    `json:"previous_streak"`
	Streak   int    `json:"streak"`
	// Streaks holds the new counter of every participant, in participant order.
	Streaks []MemberStreak `json:"streaks"`
	Entries []Submission   `json:"entries"`
}

// Member is a chat user as known to the messaging bridge.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Attachment is a file attached to an inbound message.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Request types

// CommandRequest is posted by the bridge for every slash command.
type CommandRequest struct {
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	Admin       bool   `json:"admin"`
	// Token answers a pending confirmation (reset_confirm, reset_cancel).
	Token string `json:"token,omitempty"`
}

// DirectMessageRequest is posted by the bridge for every DM the bot receives.
type DirectMessageRequest struct {
	MemberID    string       `json:"member_id"`
	Bot         bool         `json:"bot"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

// Response types

type CommandResponse struct {
	Reply string `json:"reply"`
	// Token is set when the reply asks for a confirmation.
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type DirectMessageResponse struct {
	// Reply is empty when the message is ignored.
	Reply string `json:"reply,omitempty"`
}

// Outbound bridge payloads

type SendRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text,omitempty"`
	Filename  string `json:"filename,omitempty"`
	File      []byte `json:"file,omitempty"`
}

type DMRequest struct {
	MemberID string `json:"member_id"`
	Text     string `json:"text"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
