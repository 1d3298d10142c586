package store

import (
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// Rule validates a value about to be written at a path. A nil error accepts
// the write.
type Rule func(p keypath.KeyPath, v value.Value) error

type pathRule struct {
	prefix keypath.KeyPath
	fn     Rule
}

// AddRule registers a validation rule for every write at or under
// pathPrefix. Rules run before the write is applied: in strict mode a
// failure aborts the write; in permissive mode the write proceeds and the
// failure is reported through the logger and the violation handler.
func (s *Store) AddRule(pathPrefix string, fn Rule) error {
	prefix, err := keypath.Parse(pathPrefix)
	if err != nil {
		return err
	}
	return s.do(func() error {
		s.rules = append(s.rules, pathRule{prefix: prefix, fn: fn})
		return nil
	})
}

// checkRules runs all matching rules against a pending write.
func (s *Store) checkRules(p keypath.KeyPath, v value.Value) error {
	for _, r := range s.rules {
		if !p.HasPrefix(r.prefix) {
			continue
		}
		if err := r.fn(p, v); err != nil {
			verr := &ValidationError{Path: p.String(), Err: err}
			if s.strict {
				return verr
			}
			s.logger.Warn("validation rule failed, write applied",
				"scope", s.scope.String(), "path", p.String(), "err", err)
			if s.onViolation != nil {
				s.onViolation(p.String(), verr)
			}
		}
	}
	return nil
}
