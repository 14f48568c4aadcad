// Package player содержит доменную модель игрока для подбора команды.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package player

import (
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultAge - возраст, если дата рождения неизвестна.
	DefaultAge = 25

	// DefaultLevel - уровень опыта по умолчанию.
	DefaultLevel = "Beginner"

	// BaselineRating - рейтинг игрока без статистики.
	BaselineRating = 5.0

	// PlaceholderName - имя, если в записи нет ни имени, ни логина.
	PlaceholderName = "Player"
)

// ══════════════════════════════════════════════════════════════════════════════
// POSITION
// ══════════════════════════════════════════════════════════════════════════════

// Position - позиция игрока на поле.
type Position string

const (
	PositionGoalkeeper Position = "Goalkeeper"
	PositionDefender   Position = "Defender"
	PositionMidfielder Position = "Midfielder"
	PositionForward    Position = "Forward"
)

// AllPositions возвращает все позиции в порядке расстановки (от ворот вперёд).
func AllPositions() []Position {
	return []Position{PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward}
}

// IsValid проверяет, что позиция входит в перечисление.
func (p Position) IsValid() bool {
	switch p {
	case PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление позиции.
func (p Position) String() string {
	return string(p)
}

// positionAliases - допустимые написания позиций, включая турецкие названия из приложения.
var positionAliases = map[string]Position{
	"goalkeeper": PositionGoalkeeper,
	"gk":         PositionGoalkeeper,
	"kaleci":     PositionGoalkeeper,
	"defender":   PositionDefender,
	"def":        PositionDefender,
	"defans":     PositionDefender,
	"midfielder": PositionMidfielder,
	"mid":        PositionMidfielder,
	"orta saha":  PositionMidfielder,
	"forward":    PositionForward,
	"fwd":        PositionForward,
	"forvet":     PositionForward,
}

// ParsePosition разбирает позицию без учёта регистра.
// Возвращает false для пустой или неизвестной строки.
func ParsePosition(s string) (Position, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if key == "" {
		return "", false
	}
	p, ok := positionAliases[key]
	return p, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER
// ══════════════════════════════════════════════════════════════════════════════

// Stats - игровая статистика.
type Stats struct {
	Matches int     `json:"matches"`
	Goals   int     `json:"goals"`
	Assists int     `json:"assists"`
	Rating  float64 `json:"rating"`
}

// DefaultStats возвращает статистику для игрока без истории.
func DefaultStats() Stats {
	return Stats{Rating: BaselineRating}
}

// Player - нормализованный профиль игрока (кандидата или инициатора подбора).
type Player struct {
	ID              string   `json:"id"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Username        string   `json:"username"`
	Position        Position `json:"position"`
	Phone           string   `json:"phone,omitempty"`
	Email           string   `json:"email,omitempty"`
	Location        string   `json:"location,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	ExperienceLevel string   `json:"experienceLevel"`
	Age             int      `json:"age"`
	ProfileImage    string   `json:"profileImage,omitempty"`
	Stats           Stats    `json:"stats"`
}

// FullName возвращает имя и фамилию через пробел.
func (p Player) FullName() string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// HasPosition возвращает true, если позиция задана и корректна.
func (p Player) HasPosition() bool {
	return p.Position.IsValid()
}

// HasBio возвращает true, если заполнено описание профиля.
func (p Player) HasBio() bool {
	return strings.TrimSpace(p.Bio) != ""
}

// HasPhone возвращает true, если указан телефон.
func (p Player) HasPhone() bool {
	return strings.TrimSpace(p.Phone) != ""
}

// SplitName делит отображаемое имя на имя и фамилию по пробелам.
// Всё после первого слова считается фамилией.
func SplitName(displayName string) (first, last string) {
	parts := strings.Fields(displayName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// AgeFromBirthYear вычисляет возраст как разницу лет.
// Если год рождения неизвестен или некорректен, возвращает DefaultAge.
func AgeFromBirthYear(currentYear, birthYear int) int {
	if birthYear <= 0 || birthYear > currentYear {
		return DefaultAge
	}
	return currentYear - birthYear
}
