//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	ServiceInfoURL string
	Username       string
	Password       string
	PryvPath       string
	Verbose        bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		ServiceInfoURL: os.Getenv("PRYV_TEST_SERVICE_INFO_URL"),
		Username:       os.Getenv("PRYV_TEST_USERNAME"),
		Password:       os.Getenv("PRYV_TEST_PASSWORD"),
		PryvPath:       getPryvPath(),
		Verbose:        os.Getenv("PRYV_TEST_VERBOSE") == "true",
	}
}

// getPryvPath determines the path to the pryv binary.
func getPryvPath() string {
	if path := os.Getenv("PRYV_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../pryv", "./pryv", "../pryv"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "pryv"
}

// SkipIfMissingConfig skips the test when no platform or binary is available.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.ServiceInfoURL == "" {
		t.Skip("PRYV_TEST_SERVICE_INFO_URL not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.PryvPath); err != nil {
		t.Skipf("pryv binary not found at %s, skipping integration test", config.PryvPath)
	}
}

// SkipIfNoCredentials skips the test when no test account is configured.
func (config *TestConfig) SkipIfNoCredentials(t *testing.T) {
	t.Helper()

	if config.Username == "" || config.Password == "" {
		t.Skip("PRYV_TEST_USERNAME or PRYV_TEST_PASSWORD not set, skipping")
	}
}

// CommandRunner runs the pryv binary against an isolated config file.
type CommandRunner struct {
	config     *TestConfig
	t          *testing.T
	configFile string
}

// NewCommandRunner creates a new command runner.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		t:          t,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
	}
}

// Run executes a pryv command and returns its output.
func (runner *CommandRunner) Run(args ...string) (string, string, error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a pryv command with stdin input.
func (runner *CommandRunner) RunWithInput(input string, args ...string) (string, string, error) {
	fullArgs := append([]string{
		"--config", runner.configFile,
		"--service-info-url", runner.config.ServiceInfoURL,
	}, args...)

	// #nosec G204
	cmd := exec.Command(runner.config.PryvPath, fullArgs...)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.PryvPath, strings.Join(args, " "))
	}

	err := cmd.Run()
	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login authenticates the test account, password read from stdin.
func (runner *CommandRunner) Login() (string, error) {
	stdout, stderr, err := runner.RunWithInput(runner.config.Password+"\n",
		"login", "--username", runner.config.Username, "--app-id", "pryv-cli-integration")
	if err != nil {
		return stderr, err
	}

	return stdout, nil
}

// AssertJSONOutput verifies command output is valid JSON.
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	if !json.Valid([]byte(strings.TrimSpace(output))) {
		t.Errorf("Output is not JSON: %s", output)
	}
}

// AssertYAMLOutput verifies command output looks like YAML.
func AssertYAMLOutput(t *testing.T, output string) {
	t.Helper()

	if !strings.Contains(output, ":") {
		t.Errorf("Output does not appear to be YAML: %s", output)
	}
}
