package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Status is a closed set. The zero value is not a valid status, so a
// Status only ever comes from ParseStatus or one of the constants.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusInactive
)

var statusNames = map[Status]string{
	StatusActive:   "active",
	StatusInactive: "inactive",
}

type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return InvalidStatusMessage(e.Value)
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	}
	return 0, &InvalidStatusError{Value: s}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store %s", s)
	}
	return s.String(), nil
}

func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
