package cli

import (
	"errors"

	"github.com/klauern/amsync/internal/sync"
)

// Exit codes from sysexits.h.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitNoInput = 66
	ExitIOErr   = 74
)

// ExitCode maps an error returned by Run to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, sync.ErrEmptyWorkingSet):
		return ExitNoInput
	case errors.Is(err, sync.ErrLocalRead), errors.Is(err, sync.ErrNothingFetched):
		return ExitIOErr
	default:
		return ExitFailure
	}
}
