package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/robodriver/internal/action"
)

// ErrTargetNotFound means a target does not name any element of the snapshot.
var ErrTargetNotFound = errors.New("target not found")

// Resolve maps t onto an element of this snapshot. Names are compared
// case-insensitively with whitespace collapsed; an exact match wins over a
// substring match, and ties go to the lowest index.
func (s *PageSnapshot) Resolve(t action.Target) (ElementDescriptor, error) {
	if t.ByIndex {
		if t.Index < 0 || t.Index >= len(s.Elements) {
			return ElementDescriptor{}, fmt.Errorf("%w: index %d, snapshot has %d elements", ErrTargetNotFound, t.Index, len(s.Elements))
		}
		return s.Elements[t.Index], nil
	}

	name := normalize(t.Name)
	if name == "" {
		return ElementDescriptor{}, fmt.Errorf("%w: empty name", ErrTargetNotFound)
	}
	role := strings.ToLower(strings.TrimSpace(t.Role))

	matchers := []func(string) bool{
		func(n string) bool { return n == name },
		func(n string) bool { return strings.Contains(n, name) },
	}
	for _, match := range matchers {
		for _, el := range s.Elements {
			if role != "" && el.Role != role {
				continue
			}
			if match(normalize(el.Name)) || (el.Name == "" && match(normalize(el.Placeholder))) {
				return el, nil
			}
		}
	}
	return ElementDescriptor{}, fmt.Errorf("%w: no element matches %s", ErrTargetNotFound, t)
}

func normalize(s string) string {
	return strings.ToLower(collapse(s))
}
