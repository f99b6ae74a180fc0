package cli

import (
	"fmt"
	"os"
	"testing"

	"github.com/klauern/amsync/internal/util"
)

// TestMain points HOME and AMSYNC_HOME at a scratch directory so no test
// reads or writes the real amsync configuration.
func TestMain(m *testing.M) {
	tempHome, err := os.MkdirTemp("", "amsync-home-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp HOME: %v\n", err)
		os.Exit(1)
	}

	restore := make(map[string]*string)
	for _, env := range []string{"HOME", util.HomeEnv, "PAGER"} {
		if v, ok := os.LookupEnv(env); ok {
			restore[env] = &v
		} else {
			restore[env] = nil
		}
	}
	_ = os.Setenv("HOME", tempHome)
	_ = os.Setenv(util.HomeEnv, tempHome)
	_ = os.Unsetenv("PAGER")

	code := m.Run()

	for env, v := range restore {
		if v != nil {
			_ = os.Setenv(env, *v)
		} else {
			_ = os.Unsetenv(env)
		}
	}
	_ = os.RemoveAll(tempHome)

	os.Exit(code)
}
