package workflow

import (
	"errors"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/resolver"
)

// Action is the follow-up a caller should offer after a run.
type Action int

const (
	ActionNone Action = iota
	ActionRetry
	ActionConfigureManually
	ActionOpenLog
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionConfigureManually:
		return "configure-manually"
	case ActionOpenLog:
		return "open-log"
	default:
		return "none"
	}
}

// Classify maps the result of Run to a follow-up action.
func Classify(res launcher.Result, err error) Action {
	if err != nil {
		var searchErr *resolver.SearchError
		var launchErr *launcher.LaunchError
		switch {
		case errors.Is(err, resolver.ErrNotFound), errors.As(err, &searchErr):
			return ActionConfigureManually
		case errors.Is(err, resolver.ErrInvalidRequest):
			return ActionConfigureManually
		case errors.As(err, &launchErr):
			return ActionOpenLog
		default:
			return ActionRetry
		}
	}
	if res.Success() {
		return ActionNone
	}
	return ActionRetry
}
