package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv disables network side effects of the binaries when set to 1.
const TestModeEnv = "PAROISSE_TEST_MODE"

var (
	testModeMu     sync.RWMutex
	testModeCached *bool
)

// InTestMode reports whether binaries should skip runtime startup.
func InTestMode() bool {
	testModeMu.RLock()
	cached := testModeCached
	testModeMu.RUnlock()
	if cached != nil {
		return *cached
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the environment, e.g. after t.Setenv.
func RefreshTestMode() bool {
	enabled, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testModeMu.Lock()
	testModeCached = &enabled
	testModeMu.Unlock()
	return enabled
}
