package models

import (
	"time"

	"github.com/google/uuid"
)

// Rank is a player's permission tier, stored as its name string.
type Rank string

const (
	RankDefault   Rank = "DEFAULT"
	RankVIP       Rank = "VIP"
	RankModerator Rank = "MODERATOR"
	RankAdmin     Rank = "ADMIN"
)

// ParseRank resolves a stored rank name with a case-sensitive exact
// match. Unknown names degrade to the empty rank so rows written by a
// newer deployment still load.
func ParseRank(s string) Rank {
	switch Rank(s) {
	case RankDefault, RankVIP, RankModerator, RankAdmin:
		return Rank(s)
	default:
		return ""
	}
}

// ProfileSettings is the nested per-player settings blob, serialized as
// JSON into a single column.
type ProfileSettings struct {
	Language      string `json:"language,omitempty"`
	SoundsEnabled bool   `json:"sounds_enabled"`
	ChatColor     string `json:"chat_color,omitempty"`
}

// PlayerProfile represents one row of the 'player_profiles' table.
type PlayerProfile struct {
	ID       uuid.UUID
	Name     string
	Rank     Rank
	Balance  int64
	Settings ProfileSettings
	LastSeen time.Time
}
