package app

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// TestModeEnv switches the binaries into a no-op mode for tests.
const TestModeEnv = "STOREFRONT_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(TestModeEnv) == "1")
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}

// SkipStartup reports whether process should exit before touching external
// services, logging the reason when it does.
func SkipStartup(logger *slog.Logger, process string) bool {
	if !InTestMode() {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("test mode detected, skipping startup", slog.String("process", process))
	return true
}
