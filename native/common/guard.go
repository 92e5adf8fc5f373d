package common

import (
	"fmt"
	"strings"

	coreerrors "gigchain/core/errors"
)

// ErrModulePaused is returned for transitions on a module the operator has
// paused. It is a WrongState kind.
var ErrModulePaused = fmt.Errorf("module paused: %w", coreerrors.ErrWrongState)

type PauseView interface {
	IsPaused(module string) bool
}

// PauseSet is a static PauseView built from configuration.
type PauseSet map[string]struct{}

// NewPauseSet normalises module names to lower case.
func NewPauseSet(modules ...string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, m := range modules {
		if trimmed := strings.ToLower(strings.TrimSpace(m)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func (p PauseSet) IsPaused(module string) bool {
	_, ok := p[strings.ToLower(module)]
	return ok
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
