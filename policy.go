package optimistic

import (
	"fmt"
	"strings"
)

// Policy governs whether remote changes are applied without user
// intervention.
type Policy int

const (
	// SurfaceAll never applies remote changes automatically; every remote
	// change not matched by an identical local change is reported.
	SurfaceAll Policy = iota
	// AutoApply applies every non-conflicting remote change and reports only
	// true conflicts.
	AutoApply
	// ServerWins behaves like AutoApply and additionally lets the remote side
	// win every genuine collision, discarding the local edit.
	ServerWins
)

// AutoResolves reports whether the policy applies remote changes by itself.
func (p Policy) AutoResolves() bool {
	return p == AutoApply || p == ServerWins
}

func (p Policy) String() string {
	switch p {
	case AutoApply:
		return "auto"
	case ServerWins:
		return "server"
	}
	return "surface"
}

// ParsePolicy parses a policy name. The legacy spellings "false", "true" and
// "" are accepted alongside "surface", "auto" and "server".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "surface", "manual", "none":
		return SurfaceAll, nil
	case "true", "auto":
		return AutoApply, nil
	case "server":
		return ServerWins, nil
	}
	return SurfaceAll, fmt.Errorf("unknown resolution policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
