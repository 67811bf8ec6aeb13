package messaging

import "github.com/google/uuid"

// Queue names (должны совпадать с именами у консьюмеров).
const (
	StatRecomputeQueue = "stat_recompute_tasks"
	ClientUpdateQueue  = "client_updates"
)

// StatRecomputePayload просит внешний пересчётчик обновить производные
// значения (tot = base+anima+equip+mod) после записи леджера.
type StatRecomputePayload struct {
	CharacterID uuid.UUID `json:"character_id"`
	// Reason помогает консьюмеру в логах: "stat_spend", "level_up", "level_up_all".
	Reason string `json:"reason"`
}

// ClientTurnUpdatePayload уведомляет клиентов о продвижении хода в бою.
type ClientTurnUpdatePayload struct {
	EncounterID       uuid.UUID  `json:"encounter_id"`
	Round             int        `json:"round"`
	TurnIndex         int        `json:"turn_index"`
	NewRound          bool       `json:"new_round"`
	ActiveParticipant *uuid.UUID `json:"active_participant,omitempty"`
	ActiveLabel       string     `json:"active_label,omitempty"`
}
