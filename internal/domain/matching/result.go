package matching

import (
	"encoding/json"
	"fmt"

	"github.com/halisaha/teammatch/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Distance - расстояние до кандидата. Геолокация не реализована, поэтому
// значение обычно неизвестно и сериализуется как "unknown".
type Distance struct {
	km    float64
	known bool
}

// UnknownDistance возвращает неизмеренное расстояние.
func UnknownDistance() Distance {
	return Distance{}
}

// DistanceKM возвращает известное расстояние в километрах.
func DistanceKM(km float64) Distance {
	return Distance{km: km, known: true}
}

// Known возвращает расстояние и признак того, что оно измерено.
func (d Distance) Known() (float64, bool) {
	return d.km, d.known
}

// MarshalJSON пишет число или строку "unknown".
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.known {
		return []byte(`"unknown"`), nil
	}
	return json.Marshal(d.km)
}

// UnmarshalJSON принимает число или строку "unknown".
func (d *Distance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unknown" {
			return fmt.Errorf("distance: unexpected value %q", s)
		}
		*d = UnknownDistance()
		return nil
	}
	var km float64
	if err := json.Unmarshal(data, &km); err != nil {
		return fmt.Errorf("distance: %w", err)
	}
	*d = DistanceKM(km)
	return nil
}

// PlayerMatch - кандидат с оценкой совместимости. Никогда не сохраняется.
type PlayerMatch struct {
	player.Player
	CompatibilityScore MatchScore `json:"compatibilityScore"`
	Distance           Distance   `json:"distance"`
	MatchReasons       []string   `json:"matchReasons"`
}

// NewPlayerMatch оценивает кандидата относительно инициатора.
func NewPlayerMatch(requester, candidate player.Player) PlayerMatch {
	score, reasons := Score(requester, candidate)
	return PlayerMatch{
		Player:             candidate,
		CompatibilityScore: score,
		Distance:           UnknownDistance(),
		MatchReasons:       reasons,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN STATE
// ══════════════════════════════════════════════════════════════════════════════

// RunState - состояние прогона подбора.
type RunState string

const (
	StateInit            RunState = "INIT"
	StateLoadProfile     RunState = "LOAD_PROFILE"
	StateLoadPreferences RunState = "LOAD_PREFERENCES"
	StateFetchCandidates RunState = "FETCH_CANDIDATES"
	StateScoreAndGroup   RunState = "SCORE_AND_GROUP"
	StateDone            RunState = "DONE"
	StateFailed          RunState = "FAILED"
)

// IsTerminal возвращает true для DONE и FAILED.
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// SuccessMessage - сообщение успешного прогона.
const SuccessMessage = "teammates found"

// TeamMatchingResult - результат одного прогона. Полностью пересобирается
// при каждом запуске.
type TeamMatchingResult struct {
	RunID                string                            `json:"runId,omitempty"`
	Generation           uint64                            `json:"generation,omitempty"`
	Success              bool                              `json:"success"`
	State                RunState                          `json:"state"`
	TeamMembers          []PlayerMatch                     `json:"teamMembers"`
	UserPosition         player.Position                   `json:"userPosition,omitempty"`
	RequiredPositions    Requirements                      `json:"requiredPositions"`
	TotalMatches         int                               `json:"totalMatches"`
	PositionAlternatives map[player.Position][]PlayerMatch `json:"positionAlternatives"`
	Message              string                            `json:"message,omitempty"`
}

// Failed строит неуспешный результат с пользовательским сообщением.
func Failed(message string) *TeamMatchingResult {
	return &TeamMatchingResult{
		Success:              false,
		State:                StateFailed,
		TeamMembers:          []PlayerMatch{},
		RequiredPositions:    Requirements{},
		PositionAlternatives: map[player.Position][]PlayerMatch{},
		Message:              message,
	}
}
