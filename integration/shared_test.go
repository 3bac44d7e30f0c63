//go:build basic || database

package integration

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// sharedReposcanPath holds the path to a shared reposcan binary built once for all tests.
	sharedReposcanPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// fakeOpenAIKey is picked up by the default gitleaks rules.
const fakeOpenAIKey = "sk-proj-abc123def456ghi789jkl012mno345pqr678stu901xyz"

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}
	os.Exit(code)
}

// getReposcanBinary returns the path to the reposcan binary, building it once if needed.
func getReposcanBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "reposcan-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		reposcanPath := filepath.Join(tempDir, "reposcan")
		buildCmd := exec.Command("go", "build", "-o", reposcanPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if output, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build reposcan: %v\n%s", err, output))
		}

		sharedReposcanPath = reposcanPath
	})

	return sharedReposcanPath
}

// runReposcan runs the binary with the given environment and returns stdout
// and the exit code. Stderr is logged on failure.
func runReposcan(t *testing.T, env map[string]string, args ...string) ([]byte, int) {
	t.Helper()
	cmd := exec.Command(getReposcanBinary(), args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), "HOME="+cmd.Dir, "REPOSCAN_LOG_LEVEL=warn")
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	output, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		t.Logf("Command exited %d: %s\nStderr: %s", exitErr.ExitCode(), cmd.String(), exitErr.Stderr)
		return output, exitErr.ExitCode()
	}
	require.NoError(t, err)
	return output, 0
}

// writeRepo creates a plain directory tree to scan. One file holds a secret.
func writeRepo(t *testing.T, files int) string {
	t.Helper()
	root := t.TempDir()
	for i := range files {
		name := filepath.Join(root, fmt.Sprintf("pkg%d", i%7), fmt.Sprintf("file%03d.go", i))
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("package pkg%d\n\nvar n%d = %d\n", i%7, i, i)), 0o644))
	}
	secret := filepath.Join(root, "config", "client.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(secret), 0o755))
	require.NoError(t, os.WriteFile(secret, []byte("\nconst apiKey = \""+fakeOpenAIKey+"\"\n"), 0o644))
	return root
}
