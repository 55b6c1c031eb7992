package router

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath indicates a malformed component path: empty, containing
// empty tokens, or containing the "." separator inside a token. It is
// detected at the call boundary of every resolver and gate operation,
// before any rule lookup.
var ErrInvalidPath = errors.New("invalid component path")

// DefaultName is the reserved token of the default (root/unmatched) rule.
const DefaultName = "default"

// Path identifies a hierarchical logging component as an ordered,
// non-empty sequence of name tokens. Paths compare by value through their
// dotted Key form: Path{"core", "io"} has the key "core.io".
type Path []string

// Default is the reserved one-token sentinel path holding the rule that
// applies when no other prefix of a path matches.
var Default = Path{DefaultName}

// NewPath builds a Path from the given tokens and validates it.
func NewPath(tokens ...string) (Path, error) {
	p := Path(tokens)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParsePath converts a dotted component string ("core.io.reader") to a Path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return NewPath(strings.Split(s, ".")...)
}

// Validate reports whether the path is well formed. A valid path is
// non-empty and every token is a non-empty string without the "."
// separator.
func (p Path) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for i, tok := range p {
		if tok == "" {
			return fmt.Errorf("%w: empty token at position %d", ErrInvalidPath, i)
		}
		if strings.Contains(tok, ".") {
			return fmt.Errorf("%w: token %q contains separator", ErrInvalidPath, tok)
		}
	}
	return nil
}

// Key returns the canonical dotted form used as the rule-set map key.
func (p Path) Key() string {
	return strings.Join(p, ".")
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return p.Key()
}

// IsDefault reports whether the path is the reserved default sentinel.
func (p Path) IsDefault() bool {
	return len(p) == 1 && p[0] == DefaultName
}
