// Package testutil provides shared utilities for integration and e2e tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// DefaultTimeout is the default timeout for test operations.
var DefaultTimeout = 2 * time.Minute

func init() {
	if t := os.Getenv("TEST_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			DefaultTimeout = d
		}
	}
}

// TestContext returns a context with the default test timeout.
// The context is cancelled when the test completes.
func TestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// TempDir creates a temporary directory that is cleaned up after the test.
func TempDir(t testing.TB, prefix string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", fmt.Sprintf("blobnet-test-%s-*", prefix))
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(dir); err != nil {
			t.Logf("failed to remove temp dir: %v", err)
		}
	})
	return dir
}

// SkipIfShort skips the test if running with -short flag.
func SkipIfShort(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
}
