package signal

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures every handler's listen goroutine is stopped by the
// tests that started it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
