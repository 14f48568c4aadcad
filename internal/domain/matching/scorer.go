package matching

import (
	"github.com/halisaha/teammatch/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING PHILOSOPHY
//
// При подборе партнёров мы приоритизируем:
// 1. Дополняющие позиции (игрок другой позиции нужнее, чем ещё один такой же)
// 2. Заполненный профиль (есть описание)
// 3. Возможность связаться (есть телефон)
//
// Кандидаты той же позиции тоже оцениваются, но стоят ниже.
// ══════════════════════════════════════════════════════════════════════════════

// Веса факторов совместимости.
const (
	BaselineScore       = 70
	ComplementaryWeight = 20
	BioWeight           = 5
	PhoneWeight         = 5

	MinScore = 60
	MaxScore = 100

	// MaxReasons - сколько причин показывать пользователю.
	MaxReasons = 2
)

// Тексты причин совместимости.
const (
	ReasonDetailedProfile = "detailed profile"
	ReasonContactInfo     = "contact info available"
)

// MatchScore представляет оценку совместимости.
type MatchScore int

// IsValid проверяет, что оценка в диапазоне [MinScore, MaxScore].
func (m MatchScore) IsValid() bool {
	return m >= MinScore && m <= MaxScore
}

// Clamp ограничивает оценку диапазоном [MinScore, MaxScore].
func (m MatchScore) Clamp() MatchScore {
	return min(max(m, MinScore), MaxScore)
}

// PositionReason возвращает причину "<позиция> position needed".
func PositionReason(pos player.Position) string {
	return pos.String() + " position needed"
}

// Score оценивает кандидата относительно инициатора и возвращает не более
// двух причин. Причина по позиции всегда первая.
func Score(requester, candidate player.Player) (MatchScore, []string) {
	score := MatchScore(BaselineScore)
	if candidate.Position != requester.Position {
		score += ComplementaryWeight
	}

	reasons := []string{PositionReason(candidate.Position)}

	if candidate.HasBio() {
		score += BioWeight
		reasons = append(reasons, ReasonDetailedProfile)
	}
	if candidate.HasPhone() {
		score += PhoneWeight
		reasons = append(reasons, ReasonContactInfo)
	}

	if len(reasons) > MaxReasons {
		reasons = reasons[:MaxReasons]
	}

	return score.Clamp(), reasons
}
