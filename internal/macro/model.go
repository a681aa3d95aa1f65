package macro

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// KeyMapping remaps a global source combo to a simulated target combo.
type KeyMapping struct {
	ID          string    `json:"id"`
	GameID      *string   `json:"game_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SourceKey   string    `json:"source_key"`
	TargetKey   string    `json:"target_key"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields a mapping needs before it is stored.
func (m KeyMapping) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(m.SourceKey) == "" {
		errs = append(errs, errors.New("source_key is required"))
	}
	if strings.TrimSpace(m.TargetKey) == "" {
		errs = append(errs, errors.New("target_key is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid key mapping: %w", errors.Join(errs...))
	}
	return nil
}

// Macro is a named, ordered sequence of timed key actions.
type Macro struct {
	ID          string     `json:"id"`
	GameID      *string    `json:"game_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TriggerKey  string     `json:"trigger_key"`
	Actions     ActionList `json:"actions"`
	// DelayMs is waited after every non-delay action.
	DelayMs     int       `json:"delay_ms"`
	RepeatCount int       `json:"repeat_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields a macro needs before it is stored.
func (m Macro) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if m.DelayMs < 0 {
		errs = append(errs, fmt.Errorf("delay_ms must be >= 0, got %d", m.DelayMs))
	}
	if m.RepeatCount < 1 {
		errs = append(errs, fmt.Errorf("repeat_count must be >= 1, got %d", m.RepeatCount))
	}
	for i, action := range m.Actions {
		if action == nil {
			errs = append(errs, fmt.Errorf("action %d is nil", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid macro: %w", errors.Join(errs...))
	}
	return nil
}

// key identifies a macro for overlap tracking.
func (m Macro) key() string {
	if m.ID != "" {
		return m.ID
	}
	return "name:" + m.Name
}

func (m Macro) passes() int {
	return max(m.RepeatCount, 1)
}

func (m Macro) interActionDelay() time.Duration {
	if m.DelayMs <= 0 {
		return 0
	}
	return time.Duration(m.DelayMs) * time.Millisecond
}
