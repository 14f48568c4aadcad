// Package preferences содержит настройки подбора игрока и правила их
// пошагового изменения. Внешних зависимостей нет.
package preferences

import (
	"slices"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIMITS
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinDistanceKM  = 5
	MaxDistanceKM  = 50
	DistanceStepKM = 5

	MinSkillRange  = 0
	MaxSkillRange  = 3
	SkillRangeStep = 1

	MinAge  = 16
	MaxAge  = 60
	AgeStep = 1
)

// AgeRange - диапазон возраста [Min, Max], всегда Min < Max.
type AgeRange [2]int

// Min возвращает нижнюю границу.
func (r AgeRange) Min() int { return r[0] }

// Max возвращает верхнюю границу.
func (r AgeRange) Max() int { return r[1] }

// MatchingPreferences - настройки подбора игрока.
type MatchingPreferences struct {
	MaxDistance        int               `json:"maxDistance"`
	SkillLevelRange    int               `json:"skillLevelRange"`
	AgeRange           AgeRange          `json:"ageRange"`
	PreferredPositions []player.Position `json:"preferredPositions"`
	PreferredTimes     []string          `json:"preferredTimes"`
	OnlyActiveUsers    bool              `json:"onlyActiveUsers"`
}

// Default возвращает настройки, которые создаются при первом использовании.
func Default() MatchingPreferences {
	return MatchingPreferences{
		MaxDistance:        10,
		SkillLevelRange:    1,
		AgeRange:           AgeRange{18, 35},
		PreferredPositions: []player.Position{},
		PreferredTimes:     []string{},
		OnlyActiveUsers:    true,
	}
}

// Clone возвращает глубокую копию.
func (p MatchingPreferences) Clone() MatchingPreferences {
	out := p
	out.PreferredPositions = slices.Clone(p.PreferredPositions)
	out.PreferredTimes = slices.Clone(p.PreferredTimes)
	if out.PreferredPositions == nil {
		out.PreferredPositions = []player.Position{}
	}
	if out.PreferredTimes == nil {
		out.PreferredTimes = []string{}
	}
	return out
}

// Normalize приводит значения к допустимым диапазонам. Используется для
// данных из хранилища и частичных обновлений.
func (p MatchingPreferences) Normalize() MatchingPreferences {
	out := p.Clone()
	out.MaxDistance = clamp(out.MaxDistance, MinDistanceKM, MaxDistanceKM)
	out.SkillLevelRange = clamp(out.SkillLevelRange, MinSkillRange, MaxSkillRange)

	lo := clamp(out.AgeRange.Min(), MinAge, MaxAge-1)
	hi := clamp(out.AgeRange.Max(), lo+1, MaxAge)
	out.AgeRange = AgeRange{lo, hi}

	positions := make([]player.Position, 0, len(out.PreferredPositions))
	for _, pos := range out.PreferredPositions {
		if pos.IsValid() && !slices.Contains(positions, pos) {
			positions = append(positions, pos)
		}
	}
	out.PreferredPositions = positions

	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTIAL UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Patch - частичное обновление настроек. nil означает "не менять".
type Patch struct {
	MaxDistance        *int              `json:"maxDistance,omitempty"`
	SkillLevelRange    *int              `json:"skillLevelRange,omitempty"`
	AgeRange           *AgeRange         `json:"ageRange,omitempty"`
	PreferredPositions []player.Position `json:"preferredPositions,omitempty"`
	PreferredTimes     []string          `json:"preferredTimes,omitempty"`
	OnlyActiveUsers    *bool             `json:"onlyActiveUsers,omitempty"`
}

// IsEmpty возвращает true, если обновление ничего не меняет.
func (p Patch) IsEmpty() bool {
	return p.MaxDistance == nil && p.SkillLevelRange == nil && p.AgeRange == nil &&
		p.PreferredPositions == nil && p.PreferredTimes == nil && p.OnlyActiveUsers == nil
}

// Merge накладывает обновление на base и нормализует результат.
func Merge(base MatchingPreferences, patch Patch) MatchingPreferences {
	out := base.Clone()
	if patch.MaxDistance != nil {
		out.MaxDistance = *patch.MaxDistance
	}
	if patch.SkillLevelRange != nil {
		out.SkillLevelRange = *patch.SkillLevelRange
	}
	if patch.AgeRange != nil {
		out.AgeRange = *patch.AgeRange
	}
	if patch.PreferredPositions != nil {
		out.PreferredPositions = slices.Clone(patch.PreferredPositions)
	}
	if patch.PreferredTimes != nil {
		out.PreferredTimes = slices.Clone(patch.PreferredTimes)
	}
	if patch.OnlyActiveUsers != nil {
		out.OnlyActiveUsers = *patch.OnlyActiveUsers
	}
	return out.Normalize()
}

// ══════════════════════════════════════════════════════════════════════════════
// STEPPED ADJUSTMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Field - настройка, которую можно менять шагами.
type Field string

const (
	FieldMaxDistance     Field = "maxDistance"
	FieldSkillLevelRange Field = "skillLevelRange"
	FieldAgeMin          Field = "ageMin"
	FieldAgeMax          Field = "ageMax"
)

// Direction - направление шага.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

func (d Direction) sign() (int, bool) {
	switch d {
	case Increase:
		return 1, true
	case Decrease:
		return -1, true
	default:
		return 0, false
	}
}

// AdjustDistance меняет радиус на ±5 км в пределах [5, 50].
func AdjustDistance(current, sign int) int {
	return clamp(current+sign*DistanceStepKM, MinDistanceKM, MaxDistanceKM)
}

// AdjustSkillRange меняет допуск по уровню на ±1 в пределах [0, 3].
func AdjustSkillRange(current, sign int) int {
	return clamp(current+sign*SkillRangeStep, MinSkillRange, MaxSkillRange)
}

// AdjustAgeMin меняет нижнюю границу возраста: не меньше 16 и строго меньше верхней.
func AdjustAgeMin(r AgeRange, sign int) AgeRange {
	lo := clamp(r.Min()+sign*AgeStep, MinAge, r.Max()-1)
	return AgeRange{lo, r.Max()}
}

// AdjustAgeMax меняет верхнюю границу возраста: не больше 60 и строго больше нижней.
func AdjustAgeMax(r AgeRange, sign int) AgeRange {
	hi := clamp(r.Max()+sign*AgeStep, r.Min()+1, MaxAge)
	return AgeRange{r.Min(), hi}
}

// Adjust выполняет один шаг изменения и возвращает частичное обновление,
// содержащее только изменённое поле.
func Adjust(current MatchingPreferences, field Field, dir Direction) (Patch, error) {
	sign, ok := dir.sign()
	if !ok {
		return Patch{}, shared.ErrInvalidAdjustment
	}

	switch field {
	case FieldMaxDistance:
		v := AdjustDistance(current.MaxDistance, sign)
		return Patch{MaxDistance: &v}, nil
	case FieldSkillLevelRange:
		v := AdjustSkillRange(current.SkillLevelRange, sign)
		return Patch{SkillLevelRange: &v}, nil
	case FieldAgeMin:
		r := AdjustAgeMin(current.AgeRange, sign)
		return Patch{AgeRange: &r}, nil
	case FieldAgeMax:
		r := AdjustAgeMax(current.AgeRange, sign)
		return Patch{AgeRange: &r}, nil
	default:
		return Patch{}, shared.ErrInvalidAdjustment
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
