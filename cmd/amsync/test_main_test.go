package main

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	tempHome, err := os.MkdirTemp("", "amsync-cmd-test-")
	if err != nil {
		panic(err)
	}

	setEnvOrPanic := func(key, value string) {
		if err := os.Setenv(key, value); err != nil {
			panic(err)
		}
	}
	setEnvOrPanic("HOME", tempHome)
	setEnvOrPanic("AMSYNC_HOME", tempHome)
	_ = os.Unsetenv("PAGER")

	code := m.Run()
	_ = os.RemoveAll(tempHome)
	os.Exit(code)
}
