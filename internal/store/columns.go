package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// column converts a wire value into the column updates it implies.
type column func(raw string) (map[string]any, error)

func text(name string) column {
	return func(raw string) (map[string]any, error) {
		return map[string]any{name: raw}, nil
	}
}

func requiredText(name string) column {
	return func(raw string) (map[string]any, error) {
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("%s must not be empty", name)
		}
		return map[string]any{name: raw}, nil
	}
}

func integer(name string) column {
	return func(raw string) (map[string]any, error) {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return map[string]any{name: value}, nil
	}
}

func boolean(name string) column {
	return func(raw string) (map[string]any, error) {
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return map[string]any{name: value}, nil
	}
}

func timestamp(name string) column {
	return func(raw string) (map[string]any, error) {
		value, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return map[string]any{name: value}, nil
	}
}

func jsonList[T any](name string) column {
	return func(raw string) (map[string]any, error) {
		var items []T
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
		return map[string]any{name: raw}, nil
	}
}

// status keeps the completed flag in step with the status column.
func status(raw string) (map[string]any, error) {
	value := entities.Status(strings.TrimSpace(raw))
	if !value.Known() {
		return nil, fmt.Errorf("unknown status %q", raw)
	}
	return map[string]any{
		"status_name": string(value),
		"completed":   value == entities.StatusDone,
	}, nil
}

func priority(raw string) (map[string]any, error) {
	value := entities.Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !value.Known() {
		return nil, fmt.Errorf("unknown priority %q", raw)
	}
	return map[string]any{"priority": string(value)}, nil
}

func (s *Store) deadlineColumn(raw string) (map[string]any, error) {
	normalized, err := s.normalizeDeadline(raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"deadline": normalized}, nil
}

// normalizeDeadline stores parsable deadlines as RFC 3339 in UTC. An empty
// deadline is kept empty.
func (s *Store) normalizeDeadline(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	at, err := s.deadlines.ParseStrict(raw)
	if err != nil {
		return "", err
	}
	return at.UTC().Format(time.RFC3339), nil
}
