// Package pipeline runs the beacon cycle. Each phase is a function of an
// explicit Deps value; Run dispatches the selected phases in cycle order.
package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

// Phase is one step of the beacon cycle.
type Phase int

const (
	PhaseCollect Phase = iota
	PhaseGenerate
	PhaseVerify
	PhaseIndex
	PhasePublish
)

// Phases lists every phase in the order a cycle runs them.
var Phases = []Phase{PhaseCollect, PhaseGenerate, PhaseVerify, PhaseIndex, PhasePublish}

func (p Phase) String() string {
	switch p {
	case PhaseCollect:
		return "collect"
	case PhaseGenerate:
		return "generate"
	case PhaseVerify:
		return "verify"
	case PhaseIndex:
		return "index"
	case PhasePublish:
		return "publish"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase maps a phase name to its Phase.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Ordered returns the distinct phases of selected in cycle order.
func Ordered(selected []Phase) []Phase {
	out := make([]Phase, 0, len(selected))
	for _, p := range Phases {
		if slices.Contains(selected, p) {
			out = append(out, p)
		}
	}
	return out
}
