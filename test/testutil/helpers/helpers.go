// Package helpers provides common test helper functions.
package helpers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// Eventually waits for a condition to be true.
func Eventually(t testing.TB, timeout time.Duration, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	msg := "condition never became true"
	if len(msgAndArgs) > 0 {
		msg = fmt.Sprint(msgAndArgs...)
	}
	t.Fatal(msg)
}

// BinaryRunner helps run compiled binaries in tests.
type BinaryRunner struct {
	binaryPath string
	env        []string
}

// NewBinaryRunner creates a new binary runner. env is appended to the
// test process environment.
func NewBinaryRunner(t testing.TB, binaryPath string, env ...string) *BinaryRunner {
	t.Helper()
	return &BinaryRunner{binaryPath: binaryPath, env: env}
}

// Run runs the binary with the given arguments and waits for it to complete.
func (r *BinaryRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binaryPath, args...)
	cmd.Env = append(os.Environ(), r.env...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// BuildBinary builds a Go binary from dir and returns the path.
func BuildBinary(dir, pkg, outputDir string) (string, error) {
	outputPath := filepath.Join(outputDir, filepath.Base(pkg))

	cmd := exec.Command("go", "build", "-o", outputPath, pkg)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("failed to build %s: %v\n%s", pkg, err, output)
	}

	return outputPath, nil
}

// DaemonProcess represents a running daemon process.
type DaemonProcess struct {
	cmd     *exec.Cmd
	logPath string
	logFile *os.File
	exited  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// StartDaemon starts a blobnetd process with its output in dataDir/daemon.log.
func StartDaemon(t testing.TB, binaryPath, configPath, dataDir string) *DaemonProcess {
	t.Helper()

	logPath := filepath.Join(dataDir, "daemon.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		t.Fatalf("failed to create log file: %v", err)
	}

	cmd := exec.Command(binaryPath, "-config", configPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = dataDir

	if err := cmd.Start(); err != nil {
		logFile.Close()
		t.Fatalf("failed to start daemon: %v", err)
	}

	dp := &DaemonProcess{
		cmd:     cmd,
		logPath: logPath,
		logFile: logFile,
		exited:  make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(dp.exited)
	}()

	t.Cleanup(dp.Stop)

	return dp
}

// Stop interrupts the daemon and kills it if it does not exit in time.
func (dp *DaemonProcess) Stop() {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.stopped {
		return
	}
	dp.stopped = true

	_ = dp.cmd.Process.Signal(os.Interrupt)
	select {
	case <-dp.exited:
	case <-time.After(10 * time.Second):
		_ = dp.cmd.Process.Kill()
		<-dp.exited
	}

	dp.logFile.Close()
}

// PID returns the process ID.
func (dp *DaemonProcess) PID() int {
	return dp.cmd.Process.Pid
}

// Logs returns the daemon logs.
func (dp *DaemonProcess) Logs() string {
	data, err := os.ReadFile(dp.logPath)
	if err != nil {
		return fmt.Sprintf("error reading logs: %v", err)
	}
	return string(data)
}

// WaitForLog waits until the daemon has logged msg.
func (dp *DaemonProcess) WaitForLog(msg string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-dp.exited:
			return fmt.Errorf("daemon exited unexpectedly")
		default:
		}

		if strings.Contains(dp.Logs(), msg) {
			return nil
		}

		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %q", msg)
}

// AssertContains checks if a string contains a substring.
func AssertContains(t testing.TB, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
