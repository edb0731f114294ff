package testutil

import (
	"log"
	"testing"
)

// TestLogger returns a logger that routes through t.Logf, so output is
// attached to the test that produced it.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "[chatsync-test] ", log.LstdFlags)
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
