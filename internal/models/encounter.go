package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantKind определяет тип участника боя.
type ParticipantKind string

const (
	ParticipantPlayer ParticipantKind = "player" // Привязан к записи персонажа
	ParticipantFoe    ParticipantKind = "foe"    // Противник, записи персонажа нет
)

// Participant - участник боевой сцены. Инициатива может отсутствовать,
// пока участник её не бросил; такие участники не попадают в порядок ходов.
type Participant struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	EncounterID uuid.UUID       `json:"encounter_id" db:"encounter_id"`
	Kind        ParticipantKind `json:"kind" db:"kind"`
	CharacterID *uuid.UUID      `json:"character_id,omitempty" db:"character_id"`
	DisplayName string          `json:"display_name" db:"display_name"`
	Initiative  *int            `json:"initiative,omitempty" db:"initiative"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Encounter представляет запись боевой сцены с состоянием порядка ходов.
// Тройка (TurnOrder, TurnIndex, Round) меняется только операцией advance.
type Encounter struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	TurnOrder []uuid.UUID `json:"turn_order" db:"turn_order"`
	TurnIndex int         `json:"turn_index" db:"turn_index"`
	Round     int         `json:"round" db:"round"`
	StartedAt *time.Time  `json:"started_at,omitempty" db:"started_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// HasTurnState reports whether the encounter was ever initialized for combat.
// Advancing is a silent no-op until an external collaborator seeds the order.
func (e *Encounter) HasTurnState() bool {
	return len(e.TurnOrder) > 0 && e.Round >= 1
}

// GameLog - запись журнала боя (начало раунда, начало хода).
// Только добавление, записи не изменяются.
type GameLog struct {
	ID          uuid.UUID `json:"id" db:"id"`
	EncounterID uuid.UUID `json:"encounter_id" db:"encounter_id"`
	Message     string    `json:"message" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
