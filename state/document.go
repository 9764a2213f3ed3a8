// Package state owns the JSON state document: the single on-disk blob
// holding scheduler jobs, safeword settings, and reaction panels.
package state

import "github.com/feral-kitty/fifi/schedule"

// Document is the full persisted state. Unknown sections in an existing file
// are dropped on the next save; known sections merge over defaults at load.
type Document struct {
	Scheduler      SchedulerSection `json:"scheduler"`
	Safeword       SafewordConfig   `json:"safeword"`
	ReactionPanels []ReactionPanel  `json:"reaction_panels"`
}

// SchedulerSection holds the job collection in insertion order.
type SchedulerSection struct {
	Jobs []*schedule.Job `json:"jobs"`
}

// SafewordConfig configures the channel-lock incident flow.
type SafewordConfig struct {
	Enabled         bool        `json:"enabled"`
	Trigger         string      `json:"trigger"`
	ReleaseTrigger  string      `json:"release_trigger"`
	LogChannelID    int64       `json:"log_channel_id"`
	HistoryLimit    int         `json:"history_limit"`
	RolesToPing     []string    `json:"roles_to_ping"`
	RolesWhitelist  []string    `json:"roles_whitelist"`
	BlockedRoles    []string    `json:"blocked_roles"`
	CooldownSeconds int         `json:"cooldown_seconds"`
	LockMessage     LockMessage `json:"lock_message"`
	ReleaseMessage  LockMessage `json:"release_message"`
}

// LockMessage is the announcement posted into a channel on lock or release.
type LockMessage struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// ReactionPanel maps emoji reactions on one message to role grants.
type ReactionPanel struct {
	ChannelID int64         `json:"channel_id"`
	MessageID int64         `json:"message_id"`
	Title     string        `json:"title"`
	Mappings  []RoleMapping `json:"mappings"`
}

// RoleMapping binds one emoji to one role.
type RoleMapping struct {
	Emoji  string `json:"emoji"`
	RoleID int64  `json:"role_id"`
}

// Defaults returns the baseline document written when no state file exists.
func Defaults() *Document {
	return &Document{
		Scheduler: SchedulerSection{Jobs: []*schedule.Job{}},
		Safeword: SafewordConfig{
			Enabled:         true,
			Trigger:         "!STOP!",
			ReleaseTrigger:  "!Release",
			HistoryLimit:    25,
			RolesToPing:     []string{"Staff"},
			RolesWhitelist:  []string{"Staff"},
			BlockedRoles:    []string{},
			CooldownSeconds: 30,
			LockMessage: LockMessage{
				Text: "!STOP! HAS BEEN CALLED; CHANNEL IS LOCKED PENDING REVIEW, PLEASE STANDBY.",
			},
			ReleaseMessage: LockMessage{
				Text: "Channel released. Please continue respectfully.",
			},
		},
		ReactionPanels: []ReactionPanel{},
	}
}
