package models

import "time"

// Team is a group of hackers with a private text and voice channel.
type Team struct {
	// StdName is the lowercase, hyphenated key derived from DisplayName.
	StdName        string    `json:"std_name"`
	DisplayName    string    `json:"display_name"`
	CategoryID     string    `json:"category_id"`
	TextChannelID  string    `json:"text_channel_id"`
	VoiceChannelID string    `json:"voice_channel_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Invite is a pending offer for InviteeID to join TeamStdName.
type Invite struct {
	InviteeID   string    `json:"invitee_id"`
	TeamStdName string    `json:"team_std_name"`
	CreatedAt   time.Time `json:"created_at"`

	Team *Team `json:"team,omitempty"`
}

// Category is a Discord channel category that hosts team channel pairs.
type Category struct {
	CategoryID string    `json:"category_id"`
	TeamCount  int       `json:"team_count"`
	CreatedAt  time.Time `json:"created_at"`
}
