package models

import "github.com/google/uuid"

// Skip reasons reported by the leveling engine. Skips are not errors:
// the operation succeeded and deliberately left the record untouched.
const (
	SkipReasonMaxLevel  = "max level reached"
	SkipReasonDMAccount = "dm accounts are not levelable"
)

// LevelUpResult описывает итог повышения уровня одного персонажа.
type LevelUpResult struct {
	CharacterID   uuid.UUID `json:"character_id"`
	FromLevel     int       `json:"from_level"`
	ToLevel       int       `json:"to_level,omitempty"`
	TokensGranted int       `json:"tokens_granted"`
	SkippedReason string    `json:"skipped,omitempty"`
}

// Skipped reports whether the record was left untouched.
func (r LevelUpResult) Skipped() bool {
	return r.SkippedReason != ""
}

// AdvanceTurnResult описывает итог продвижения хода.
type AdvanceTurnResult struct {
	Advanced          bool       `json:"advanced"`
	NoopReason        string     `json:"noop_reason,omitempty"`
	Round             int        `json:"round"`
	TurnIndex         int        `json:"turn_index"`
	NewRound          bool       `json:"new_round,omitempty"`
	ActiveParticipant *uuid.UUID `json:"active_participant,omitempty"`
	ActiveLabel       string     `json:"active_label,omitempty"`
}

// DuplicateResult описывает итог дублирования персонажа. При повторе с тем же
// ключом идемпотентности возвращается сохранённый результат без перекопирования.
type DuplicateResult struct {
	NewID  uuid.UUID         `json:"new_id"`
	Name   string            `json:"name"`
	Assets map[string]string `json:"assets"`
}
