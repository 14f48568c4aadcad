package directory

import (
	"strings"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/timeutil"
)

// DefaultBlacklist lists markers of placeholder and test accounts.
var DefaultBlacklist = []string{"test", "demo", "fake", "dummy", "placeholder"}

// Mapper turns raw directory records into domain players.
// It is the validated parse step between the untyped API and the domain.
type Mapper struct {
	blacklist      []string
	baselineRating float64
	clock          timeutil.Clock
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithBlacklist replaces the default blacklist. Entries are matched as
// case-insensitive substrings.
func WithBlacklist(markers []string) MapperOption {
	return func(m *Mapper) {
		m.blacklist = m.blacklist[:0]
		for _, s := range markers {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				m.blacklist = append(m.blacklist, s)
			}
		}
	}
}

// WithBaselineRating sets the rating given to players without stats.
func WithBaselineRating(r float64) MapperOption {
	return func(m *Mapper) {
		m.baselineRating = r
	}
}

// WithClock sets the clock used to derive ages.
func WithClock(c timeutil.Clock) MapperOption {
	return func(m *Mapper) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewMapper creates a Mapper.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		blacklist:      append([]string(nil), DefaultBlacklist...),
		baselineRating: player.BaselineRating,
		clock:          timeutil.SystemClock,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ParseRecord validates a raw record and builds a player from it.
// A rejected record yields a ValidationError naming the offending field.
func (m *Mapper) ParseRecord(r PlayerRecordDTO) (player.Player, *shared.ValidationError) {
	id := strings.TrimSpace(r.Identifier())
	if r.DecodeErr != nil {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "record", Reason: "decode: " + r.DecodeErr.Error()}
	}
	if id == "" {
		return player.Player{}, &shared.ValidationError{Field: "_id", Reason: "missing identifier"}
	}

	if strings.TrimSpace(r.Position) == "" {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "position", Reason: "missing position"}
	}
	pos, ok := player.ParsePosition(r.Position)
	if !ok {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "position", Reason: "unknown position " + r.Position}
	}

	if marker, hit := m.blacklisted(r.Username); hit {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "username", Reason: "blacklisted marker " + marker}
	}
	if marker, hit := m.blacklisted(r.Name); hit {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "name", Reason: "blacklisted marker " + marker}
	}
	// Раздельные поля проверяются вместе, чтобы маркер на стыке имени и
	// фамилии тоже находился.
	fullName := strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
	if marker, hit := m.blacklisted(fullName); hit {
		return player.Player{}, &shared.ValidationError{RecordID: id, Field: "name", Reason: "blacklisted marker " + marker}
	}

	first, last := m.names(r)

	level := strings.TrimSpace(r.Level)
	if level == "" {
		level = player.DefaultLevel
	}

	return player.Player{
		ID:              id,
		FirstName:       first,
		LastName:        last,
		Username:        strings.TrimSpace(r.Username),
		Position:        pos,
		Phone:           strings.TrimSpace(r.Phone),
		Email:           strings.TrimSpace(r.Email),
		Location:        strings.TrimSpace(r.Location),
		Bio:             strings.TrimSpace(r.Bio),
		ExperienceLevel: level,
		Age:             m.age(r.BirthDate),
		ProfileImage:    r.ProfilePicture,
		Stats:           m.stats(r.Stats),
	}, nil
}

func (m *Mapper) blacklisted(s string) (string, bool) {
	s = strings.ToLower(s)
	if s == "" {
		return "", false
	}
	for _, marker := range m.blacklist {
		if strings.Contains(s, marker) {
			return marker, true
		}
	}
	return "", false
}

// names prefers discrete fields, then splits the display name, then falls
// back to the username and finally to the placeholder.
func (m *Mapper) names(r PlayerRecordDTO) (string, string) {
	first := strings.TrimSpace(r.FirstName)
	last := strings.TrimSpace(r.LastName)
	if first != "" || last != "" {
		return first, last
	}
	if first, last = player.SplitName(r.Name); first != "" {
		return first, last
	}
	if username := strings.TrimSpace(r.Username); username != "" {
		return username, ""
	}
	return player.PlaceholderName, ""
}

func (m *Mapper) age(birthDate string) int {
	year, ok := timeutil.ParseBirthYear(birthDate)
	if !ok {
		return player.DefaultAge
	}
	return player.AgeFromBirthYear(m.clock().Year(), year)
}

func (m *Mapper) stats(s *StatsDTO) player.Stats {
	out := player.Stats{Rating: m.baselineRating}
	if s == nil {
		return out
	}
	if s.Matches != nil {
		out.Matches = *s.Matches
	}
	if s.Goals != nil {
		out.Goals = *s.Goals
	}
	if s.Assists != nil {
		out.Assists = *s.Assists
	}
	if s.Rating != nil {
		out.Rating = *s.Rating
	}
	return out
}
