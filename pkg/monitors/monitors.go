// Package monitors removes on-stage monitors from a project.
package monitors

import (
	"strings"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
)

// Mode selects which monitors Prune removes.
type Mode int

const (
	// None keeps every monitor.
	None Mode = iota
	// All removes every monitor.
	All
	// Hidden removes monitors that are not visible.
	Hidden
)

func (m Mode) String() string {
	switch m {
	case All:
		return "all"
	case Hidden:
		return "hidden"
	default:
		return "none"
	}
}

// ParseMode parses "none", "all" or "hidden". The empty string is None.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "keep":
		return None, nil
	case "all":
		return All, nil
	case "hidden", "invisible":
		return Hidden, nil
	}
	return None, errors.New(errors.ErrCodeInvalidInput, "unknown monitor mode %q (want none, all or hidden)", s)
}

// Result reports how many monitors were kept and removed.
type Result struct {
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}

// Prune removes monitors from p according to mode. Targets and their maps
// are never touched. A document without a monitors member is left as is.
func Prune(p *project.Project, mode Mode) Result {
	if p.Monitors == nil || mode == None {
		return Result{Kept: len(p.Monitors)}
	}
	n := len(p.Monitors)
	switch mode {
	case All:
		p.Monitors = []*project.Monitor{}
	case Hidden:
		kept := make([]*project.Monitor, 0, n)
		for _, m := range p.Monitors {
			if m.Visible {
				kept = append(kept, m)
			}
		}
		p.Monitors = kept
	}
	return Result{Kept: len(p.Monitors), Removed: n - len(p.Monitors)}
}
