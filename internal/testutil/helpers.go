package testutil

import (
	"testing"
	"time"
)

// Ptr returns a pointer to the given value, for struct literals with
// optional pointer fields:
//
//	testutil.Ptr("elden-ring") // *string
func Ptr[T any](v T) *T { return &v }

// WaitUntil polls cond every few milliseconds and fails the test when it is
// still false after timeout. what names the condition in the failure.
func WaitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for %s", timeout, what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
