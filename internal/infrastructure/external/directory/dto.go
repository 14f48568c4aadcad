// Package directory implements the player directory client.
// It lists every registered player and normalizes the raw records into
// domain players for a matching run.
package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAW RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRecordDTO is a user record as returned by GET /users.
// Every field is optional on the wire.
type PlayerRecordDTO struct {
	ID             string    `json:"_id"`
	LegacyID       string    `json:"id,omitempty"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	FirstName      string    `json:"firstName,omitempty"`
	LastName       string    `json:"lastName,omitempty"`
	Position       string    `json:"position"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	Location       string    `json:"location"`
	Bio            string    `json:"bio"`
	Level          string    `json:"level"`
	ProfilePicture string    `json:"profilePicture"`
	BirthDate      string    `json:"birthDate,omitempty"`
	Stats          *StatsDTO `json:"stats"`

	// DecodeErr is set when the element could not be decoded; only the
	// identifier is recovered in that case.
	DecodeErr error `json:"-"`
}

// Identifier returns the stable id, preferring _id.
func (r PlayerRecordDTO) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.LegacyID
}

// StatsDTO is the optional stats block. Missing numbers decode as nil.
type StatsDTO struct {
	Matches *int     `json:"matches"`
	Goals   *int     `json:"goals"`
	Assists *int     `json:"assists"`
	Rating  *float64 `json:"rating"`
}

// usersEnvelope is the wrapped form some deployments return.
type usersEnvelope struct {
	Success *bool             `json:"success,omitempty"`
	Data    []json.RawMessage `json:"data"`
	Users   []json.RawMessage `json:"users"`
	Error   string            `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyList is returned when the directory answers with no records.
	ErrEmptyList = errors.New("directory returned no records")

	// ErrUnexpectedShape is returned when the body is neither a list nor an envelope.
	ErrUnexpectedShape = errors.New("directory response is not a list")
)

// decodeUsers accepts a bare JSON array or an envelope with data/users.
// Elements are decoded one by one so a malformed record is handed to the
// mapper for rejection instead of failing the listing.
// An empty list is an error: the caller treats it as a failed fetch.
func decodeUsers(body []byte) ([]PlayerRecordDTO, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrUnexpectedShape
	}

	var raw []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode users: %w", err)
		}
	case '{':
		var env usersEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode users envelope: %w", err)
		}
		if env.Success != nil && !*env.Success {
			return nil, fmt.Errorf("directory error: %s", env.Error)
		}
		raw = env.Data
		if raw == nil {
			raw = env.Users
		}
		if raw == nil {
			return nil, ErrUnexpectedShape
		}
	default:
		return nil, ErrUnexpectedShape
	}

	if len(raw) == 0 {
		return nil, ErrEmptyList
	}

	records := make([]PlayerRecordDTO, len(raw))
	for i, elem := range raw {
		records[i] = decodeRecord(elem)
	}
	return records, nil
}

func decodeRecord(elem json.RawMessage) PlayerRecordDTO {
	var rec PlayerRecordDTO
	err := json.Unmarshal(elem, &rec)
	if err == nil {
		return rec
	}

	var ids struct {
		ID       json.RawMessage `json:"_id"`
		LegacyID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(elem, &ids)
	return PlayerRecordDTO{
		ID:        rawString(ids.ID),
		LegacyID:  rawString(ids.LegacyID),
		DecodeErr: err,
	}
}

// rawString returns a JSON string value, or "" for anything else.
func rawString(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// APIError is a non-2xx directory answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("directory api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
