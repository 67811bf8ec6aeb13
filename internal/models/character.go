package models

import (
	"time"

	"github.com/google/uuid"
)

// StatCategory разделяет характеристики на базовые и боевые.
// Совпадает с тем, как фронтенд группирует панели характеристик.
type StatCategory string

const (
	StatCategoryBase   StatCategory = "base"   // Шаг всегда стоит 1 очко, пол -1
	StatCategoryCombat StatCategory = "combat" // Цена шага из таблицы стоимости, пол 0
)

// Valid reports whether the category is one of the two known kinds.
func (c StatCategory) Valid() bool {
	return c == StatCategoryBase || c == StatCategoryCombat
}

// StatBlock хранит составляющие одной характеристики.
// Tot пересчитывается внешним триггером как Base+Anima+Equip+Mod.
type StatBlock struct {
	Base  int `json:"base"`
	Anima int `json:"anima"`
	Equip int `json:"equip"`
	Mod   int `json:"mod"`
	Tot   int `json:"tot"`
}

// ActiveTurnEffect - временный статус, висящий на персонаже (например, барьер).
// RemainingTurns уменьшается движком ходов; обнуление зависимых полей делает
// внешний триггер истечения.
type ActiveTurnEffect struct {
	RemainingTurns int    `json:"remainingTurns"`
	TotalTurns     int    `json:"totalTurns"`
	Source         string `json:"source,omitempty"`
}

// Character представляет запись персонажа/пользователя кампании.
type Character struct {
	ID                    uuid.UUID                   `json:"id" db:"id"`
	OwnerUserID           uuid.UUID                   `json:"owner_user_id" db:"owner_user_id"`
	Name                  string                      `json:"name" db:"name"`
	Role                  string                      `json:"role" db:"role"` // player, dm или webmaster
	Level                 int                         `json:"level" db:"level"`
	BasePointsAvailable   int                         `json:"base_points_available" db:"base_points_available"`
	BasePointsSpent       int                         `json:"base_points_spent" db:"base_points_spent"`
	CombatTokensAvailable int                         `json:"combat_tokens_available" db:"combat_tokens_available"`
	CombatTokensSpent     int                         `json:"combat_tokens_spent" db:"combat_tokens_spent"`
	NegativeBaseStatCount int                         `json:"negative_base_stat_count" db:"negative_base_stat_count"`
	BaseParams            map[string]StatBlock        `json:"base_params" db:"base_params"`
	CombatParams          map[string]StatBlock        `json:"combat_params" db:"combat_params"`
	ActiveTurnEffects     map[string]ActiveTurnEffect `json:"active_turn_effects" db:"active_turn_effects"`
	CreatedAt             time.Time                   `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at" db:"updated_at"`
}

// Character role values stored on the record itself (authorization for
// leveling and duplication checks the target's role, not only the caller's).
const (
	CharacterRolePlayer    = "player"
	CharacterRoleDM        = "dm"
	CharacterRoleWebmaster = "webmaster"
)

// StatUpdate describes one atomic ledger write against a character row:
// the new base value of a single stat plus the counter deltas that go with it.
// Everything lands in the same UPDATE so the invariants hold or nothing does.
type StatUpdate struct {
	CharacterID    uuid.UUID
	Category       StatCategory
	StatName       string
	NewBase        int
	AvailableDelta int
	SpentDelta     int
	// NewNegativeCount applies to base-category updates only.
	NewNegativeCount *int
}
