//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"

	"blobnet/test/testutil"
	"blobnet/test/testutil/fixtures"
	"blobnet/test/testutil/helpers"
)

// TestCLIHelp tests that all commands have proper help output.
func TestCLIHelp(t *testing.T) {
	ctx := testutil.TestContext(t)
	runner := helpers.NewBinaryRunner(t, blobnetBinary)

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{name: "root help", args: []string{"--help"}, contains: []string{"blobnet", "get", "cost", "availability"}},
		{name: "get help", args: []string{"get", "--help"}, contains: []string{"--file-name", "--timeout"}},
		{name: "peers help", args: []string{"peers", "--help"}, contains: []string{"list", "probe", "ping"}},
		{name: "blob help", args: []string{"blob", "--help"}, contains: []string{"get", "delete"}},
		{name: "file list help", args: []string{"file", "list", "--help"}, contains: []string{"--claim-id", "--sd-hash", "--outpoint"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runner.Run(ctx, tt.args...)
			if err != nil {
				t.Fatalf("failed to run %v: %v\n%s", tt.args, err, output)
			}

			for _, expected := range tt.contains {
				helpers.AssertContains(t, strings.ToLower(output), strings.ToLower(expected))
			}
		})
	}
}

// TestCLIVersionJSON tests machine-readable version output.
func TestCLIVersionJSON(t *testing.T) {
	ctx := testutil.TestContext(t)
	runner := helpers.NewBinaryRunner(t, blobnetBinary)

	output, err := runner.Run(ctx, "version", "-o", "json")
	if err != nil {
		t.Fatalf("failed to run version: %v\n%s", err, output)
	}

	var info struct {
		Version      string `json:"version"`
		BlobProtocol string `json:"blob_protocol"`
	}
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, output)
	}
	if info.Version == "" || info.BlobProtocol != "/blobnet/blob/1.0.0" {
		t.Errorf("version = %+v", info)
	}
}

// TestCLIFileListEmpty lists files on a fresh data directory.
func TestCLIFileListEmpty(t *testing.T) {
	ctx := testutil.TestContext(t)
	dataDir := testutil.TempDir(t, "cli")
	cfg := fixtures.BlobnetConfig(dataDir)
	cfg.Log.Level = "error"
	configPath := fixtures.WriteConfigFile(t, dataDir, cfg)

	runner := helpers.NewBinaryRunner(t, blobnetBinary)

	output, err := runner.Run(ctx, "--config", configPath, "file", "list", "-o", "json")
	if err != nil {
		t.Fatalf("file list failed: %v\n%s", err, output)
	}
	if got := strings.TrimSpace(output); got != "null" && got != "[]" {
		t.Errorf("file list output = %q, want an empty list", got)
	}

	output, err = runner.Run(ctx, "--config", configPath, "file", "find", "--claim-id", "abc")
	if err == nil {
		t.Fatalf("file find on empty database succeeded:\n%s", output)
	}
	helpers.AssertContains(t, output, "no file matching claim_id=abc")
}

// TestCLIInvalidLocator checks that a malformed locator is rejected
// before resolution.
func TestCLIInvalidLocator(t *testing.T) {
	ctx := testutil.TestContext(t)
	dataDir := testutil.TempDir(t, "cli-invalid")
	cfg := fixtures.BlobnetConfig(dataDir)
	cfg.Log.Level = "error"
	configPath := fixtures.WriteConfigFile(t, dataDir, cfg)

	runner := helpers.NewBinaryRunner(t, blobnetBinary)

	output, err := runner.Run(ctx, "--config", configPath, "get", "lbry://")
	if err == nil {
		t.Fatalf("get with empty locator succeeded:\n%s", output)
	}
	helpers.AssertContains(t, output, "invalid input")
}
