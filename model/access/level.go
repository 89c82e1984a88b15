package access

import (
	"strings"

	"github.com/pkg/errors"
)

// Level is the visibility tier a request is served at.
type Level string

const (
	Public    Level = "public"
	Protected Level = "protected"
	Private   Level = "private"
)

// Validate returns an error if the level is not a known access level.
func (l Level) Validate() error {
	switch l {
	case Public, Protected, Private:
		return nil
	default:
		return errors.Errorf("invalid access level '%s'", l)
	}
}

// ParseLevel parses a case-insensitive access level name.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if err := l.Validate(); err != nil {
		return "", err
	}

	return l, nil
}
