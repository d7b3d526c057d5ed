package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(append([]string{"--no-color", "--env-file", filepath.Join(t.TempDir(), ".env")}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestShowConfigMasksSecrets(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8000")
	t.Setenv("ADMIN_PASSWORD", "admin-secret")

	out, _, err := execute(t, "show-config")
	require.NoError(t, err)

	assert.Contains(t, out, "http://localhost:8000")
	assert.NotContains(t, out, "admin-secret")
}

func TestShowConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apicheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_base_url: http://yaml:8000\n"), 0o600))

	out, _, err := execute(t, "--config", path, "show-config")
	require.NoError(t, err)

	assert.Contains(t, out, "http://yaml:8000")
}

func TestListShowsTestsInOrder(t *testing.T) {
	out, _, err := execute(t, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "RootEndpoint")
	assert.Contains(t, out, "Groups: ")
}

func TestRunRequiresBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	_, _, err := execute(t, "run")
	assert.ErrorContains(t, err, "API_BASE_URL is required")
}

func TestInvalidScheduleIsRejected(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8000")

	_, _, err := execute(t, "serve", "--schedule", "sometimes")
	assert.Error(t, err)
}

func TestInvalidQueueSizeIsRejected(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8000")

	_, _, err := execute(t, "serve", "--queue-size", "0")
	assert.ErrorContains(t, err, "invalid queue size 0")
}
