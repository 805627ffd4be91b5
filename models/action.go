package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrInvalidAction is returned when a value outside the four fact actions is
// parsed, scanned or used to build an event.
var ErrInvalidAction = errors.New("invalid fact action")

// Action is the kind of revision a fact went through. The zero value is not a
// valid action; only the four constants below are.
type Action uint8

const (
	ActionCreate Action = iota + 1
	ActionUpdate
	ActionSupersede
	ActionDelete
)

// Actions lists every valid action in declaration order.
var Actions = []Action{ActionCreate, ActionUpdate, ActionSupersede, ActionDelete}

var actionNames = map[Action]string{
	ActionCreate:    "CREATE",
	ActionUpdate:    "UPDATE",
	ActionSupersede: "SUPERSEDE",
	ActionDelete:    "DELETE",
}

// ParseAction converts the wire/storage name of an action.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// MarshalText implements encoding.TextMarshaler
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, uint8(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer
func (a Action) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, uint8(a))
	}
	return actionNames[a], nil
}

// Scan implements sql.Scanner
func (a *Action) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAction, src)
	}
}
