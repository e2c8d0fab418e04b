package models

import "time"

// Hacker is a participant keyed by their Discord user id. A row exists once
// the user has verified at least once; Verified reports the current state.
type Hacker struct {
	DiscordID   string     `json:"discord_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	TeamStdName *string    `json:"team_std_name,omitempty"`
	Verified    bool       `json:"verified"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Team is populated by lookups that join the hacker's team.
	Team *Team `json:"team,omitempty"`
}

// FullName is the name the bot uses as the member's nickname.
func (h *Hacker) FullName() string {
	return h.FirstName + " " + h.LastName
}

// InTeam reports whether the hacker is linked to a team.
func (h *Hacker) InTeam() bool {
	return h.TeamStdName != nil && *h.TeamStdName != ""
}
