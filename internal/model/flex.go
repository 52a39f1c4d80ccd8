package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

var null = []byte("null")

// Number decodes a JSON number, a numeric string or null (as 0).
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		uq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(uq)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 { return float64(n) }

// FlexString decodes a JSON string, a bare number (kept verbatim) or null
// (as the empty string).
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		uq, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*s = FlexString(uq)
		return nil
	}
	*s = FlexString(b)
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexBool decodes booleans, 0/1 numbers and "true"/"false"/"1"/"0" strings.
type FlexBool bool

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := strings.Trim(strings.ToLower(string(b)), `"`)
	switch s {
	case "", "null", "false", "0", "no":
		*v = false
	default:
		*v = true
	}
	return nil
}
