//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/sightline-io/sightline-go/pkg/slclient"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	APIEndpoint string
	APIKey      string
	BinaryPath  string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		APIEndpoint: os.Getenv("SIGHTLINE_API"),
		APIKey:      os.Getenv("SIGHTLINE_API_KEY"),
		BinaryPath:  getBinaryPath(),
		Verbose:     os.Getenv("SIGHTLINE_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the sightline binary
func getBinaryPath() string {
	if path := os.Getenv("SIGHTLINE_BINARY_PATH"); path != "" {
		return path
	}

	// Try common locations
	candidates := []string{
		"../../sightline",
		"./sightline",
		"../sightline",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "sightline" // Fallback to PATH
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	if config.APIEndpoint == "" {
		t.Skip("SIGHTLINE_API not set, skipping integration test")
	}

	if config.APIKey == "" {
		t.Skip("SIGHTLINE_API_KEY not set, skipping integration test")
	}
}

// SkipIfMissingBinary skips test if the sightline binary cannot be found
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	if _, err := os.Stat(config.BinaryPath); os.IsNotExist(err) {
		t.Skipf("sightline binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// NewAPIClient creates a client against the configured API
func (config *TestConfig) NewAPIClient(t *testing.T) sightline.Client {
	client, err := slclient.NewWithAPIKey(context.Background(), config.APIEndpoint, config.APIKey)
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}

	return client
}

// CommandRunner provides utilities for running sightline commands
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	return &CommandRunner{
		config: config,
		t:      t,
	}
}

// Run executes a sightline command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command(runner.config.BinaryPath, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunAuthenticated executes a sightline command with endpoint and key flags
func (runner *CommandRunner) RunAuthenticated(args ...string) (stdout, stderr string, err error) {
	full := append([]string{"--api", runner.config.APIEndpoint, "--api-key", runner.config.APIKey}, args...)

	return runner.Run(full...)
}

// GenerateTestDomain creates a unique domain name for test entities
func GenerateTestDomain(prefix string) string {
	return fmt.Sprintf("%s-%d.integration.example", prefix, time.Now().UnixNano())
}

// WaitForCondition waits for a condition to be met with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			if condition() {
				return
			}
		case <-timeoutChan:
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
	}
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
