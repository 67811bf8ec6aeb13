package models

import (
	"time"

	"github.com/google/uuid"
)

// LevelEvent - запись аудита о повышении уровня. Только добавление:
// события никогда не изменяются и не удаляются, их сумма по tokens_granted
// должна сходиться с выданными жетонами.
type LevelEvent struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CharacterID   uuid.UUID `json:"character_id" db:"character_id"`
	FromLevel     int       `json:"from_level" db:"from_level"`
	ToLevel       int       `json:"to_level" db:"to_level"`
	TokensGranted int       `json:"tokens_granted" db:"tokens_granted"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TokenGrantForLevel возвращает количество боевых жетонов, выдаваемых
// при достижении указанного уровня. Уровни вне [2,10] не дают ничего.
func TokenGrantForLevel(toLevel int) int {
	switch {
	case toLevel >= 2 && toLevel <= 4:
		return 4
	case toLevel >= 5 && toLevel <= 7:
		return 6
	case toLevel >= 8 && toLevel <= 10:
		return 8
	default:
		return 0
	}
}

// MaxLevel - потолок уровня персонажа.
const MaxLevel = 10
