package profile

import (
	"time"

	"datakit/core/entity"
	"datakit/feature/profile/models"

	"github.com/google/uuid"
)

// Descriptor is the field mapping for PlayerProfile. Registered once;
// a bad mapping is a programming bug, hence Must.
var Descriptor = entity.MustDescriptor[models.PlayerProfile]("player_profiles",
	entity.UUID("ID",
		func(p *models.PlayerProfile) uuid.UUID { return p.ID },
		func(p *models.PlayerProfile, v uuid.UUID) { p.ID = v },
	).Identity(),
	entity.String("Name",
		func(p *models.PlayerProfile) string { return p.Name },
		func(p *models.PlayerProfile, v string) { p.Name = v },
	).Length(32).NotNull(),
	entity.Enum("Rank",
		func(p *models.PlayerProfile) string { return string(p.Rank) },
		func(p *models.PlayerProfile, v string) { p.Rank = models.ParseRank(v) },
	),
	entity.Long("Balance",
		func(p *models.PlayerProfile) int64 { return p.Balance },
		func(p *models.PlayerProfile, v int64) { p.Balance = v },
	),
	entity.JSON("Settings",
		func(p *models.PlayerProfile) any { return &p.Settings },
	),
	entity.Time("LastSeen",
		func(p *models.PlayerProfile) time.Time { return p.LastSeen },
		func(p *models.PlayerProfile, v time.Time) { p.LastSeen = v },
	),
)
