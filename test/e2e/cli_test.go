package e2e

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"testing"
	"time"
)

// startServer launches the coordinator binary on a free port and waits
// for it to answer health checks. The returned environment is what CLI
// invocations should run with: an isolated HOME, the server URL, and
// machine-grade output for stable assertions.
func startServer(t *testing.T) (baseURL string, cliEnv []string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to pick a port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	stateDir := t.TempDir()

	var serverLog bytes.Buffer
	server := exec.Command(coordinatorBinary)
	server.Env = append(os.Environ(),
		fmt.Sprintf("COORDINATOR_PORT=%d", port),
		"COORDINATOR_AUTH_MODE=jwt",
		"COORDINATOR_JWT_SECRET=e2e-test-secret",
		"COORDINATOR_SNAPSHOT_PATH="+filepath.Join(stateDir, "state.json"),
		"GIN_MODE=release",
	)
	server.Stdout = &serverLog
	server.Stderr = &serverLog
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start coordinator: %v", err)
	}
	t.Cleanup(func() {
		server.Process.Signal(syscall.SIGTERM)
		done := make(chan struct{})
		go func() { server.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			server.Process.Kill()
			<-done
		}
		if t.Failed() {
			t.Logf("coordinator log:\n%s", serverLog.String())
		}
	})

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				cliEnv = append(os.Environ(),
					"HOME="+t.TempDir(),
					"SWITCHYARD_SERVER_URL="+baseURL,
					"SWITCHYARD_PERSONALITY=machine",
				)
				return baseURL, cliEnv
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Coordinator never became healthy.\nLog:\n%s", serverLog.String())
	return "", nil
}

// runCLI executes one switchyard command and returns its output.
func runCLI(t *testing.T, env []string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(cliBinary, args...)
	cmd.Env = env
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// mustCLI fails the test when the command does not exit cleanly.
func mustCLI(t *testing.T, env []string, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("switchyard %s failed: %v\nstdout: %s\nstderr: %s",
			strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}

var idLine = regexp.MustCompile(`(?m)^id=(\d+)$`)

// extractID pulls the operation id out of machine-grade create output.
func extractID(t *testing.T, out string) string {
	t.Helper()
	m := idLine.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("No id in output: %q", out)
	}
	return m[1]
}

// TestCLIWorkflow_HappyPath walks the full coordination workflow
// through the CLI: login, registry, planning, lifecycle, and filters.
func TestCLIWorkflow_HappyPath(t *testing.T) {
	_, env := startServer(t)

	// 1. Login stores a token for every later command
	out := mustCLI(t, env, "auth", "login", "casey")
	if !strings.Contains(out, "OK: Logged in as casey") {
		t.Fatalf("Login output missing confirmation: %q", out)
	}

	// 2. Registry
	out = mustCLI(t, env, "component", "create", "payments-db",
		"--description", "Primary payments cluster")
	if !strings.Contains(out, "OK: Component payments-db registered") {
		t.Errorf("Component create output: %q", out)
	}
	mustCLI(t, env, "tag", "create", "db-maintenance",
		"--description", "Database maintenance window")

	out = mustCLI(t, env, "component", "get", "payments-db")
	// Ownership defaults to the logged-in user
	if !strings.Contains(out, "owners=casey") {
		t.Errorf("Component owners not defaulted: %q", out)
	}

	// 3. Plan an operation
	out = mustCLI(t, env, "operation", "create",
		"--title", "Rotate payments-db leaf certificates",
		"--purpose", "Current certificates expire at the end of the month.",
		"--url", "https://change.example.com/CHG-1001",
		"--components", "payments-db",
		"--locks", "payments-db",
		"--tags", "db-maintenance")
	if !strings.Contains(out, "planned: Rotate payments-db leaf certificates") {
		t.Fatalf("Operation create output: %q", out)
	}
	opID := extractID(t, out)

	out = mustCLI(t, env, "operation", "get", opID)
	for _, want := range []string{"status=planned", "components=payments-db", "operators=casey"} {
		if !strings.Contains(out, want) {
			t.Errorf("Operation get missing %q: %q", want, out)
		}
	}

	// 4. Lifecycle: start, annotate, complete
	out = mustCLI(t, env, "operation", "start", opID)
	if !strings.Contains(out, "is now in_progress") {
		t.Errorf("Start output: %q", out)
	}

	mustCLI(t, env, "operation", "update", opID, "--annotate", "ticket=CHG-1001")
	out = mustCLI(t, env, "operation", "get", opID)
	if !strings.Contains(out, "annotations=ticket=CHG-1001") {
		t.Errorf("Annotation not visible: %q", out)
	}

	mustCLI(t, env, "operation", "complete", opID)
	out = mustCLI(t, env, "operation", "list", "--status", "completed")
	if !strings.Contains(out, "Rotate payments-db leaf certificates") {
		t.Errorf("Completed operation missing from filtered list: %q", out)
	}

	// 5. Subscriptions
	mustCLI(t, env, "subscribe", "component", "payments-db")
	out = mustCLI(t, env, "subscriptions")
	if !strings.Contains(out, "components=payments-db") {
		t.Errorf("Subscription listing: %q", out)
	}
}

// TestCLIWorkflow_LockConflict verifies that the CLI surfaces lock
// contention as a clear failure instead of mangling it.
func TestCLIWorkflow_LockConflict(t *testing.T) {
	_, env := startServer(t)

	mustCLI(t, env, "auth", "login", "casey")
	mustCLI(t, env, "component", "create", "payments-db")

	createOp := func(title, changeID string) string {
		out := mustCLI(t, env, "operation", "create",
			"--title", title,
			"--purpose", "Contention test.",
			"--url", "https://change.example.com/"+changeID,
			"--components", "payments-db",
			"--locks", "payments-db")
		return extractID(t, out)
	}
	first := createOp("Rotate the leaf certificates", "CHG-2001")
	second := createOp("Rebuild the search indexes", "CHG-2002")

	mustCLI(t, env, "operation", "start", first)

	// The second operation wants the same exclusive lock.
	_, stderr, err := runCLI(t, env, "operation", "start", second)
	if err == nil {
		t.Fatal("Starting a conflicting operation should fail")
	}
	if !strings.Contains(stderr, "failed to acquire lock on component payments-db") {
		t.Errorf("Conflict error not surfaced: %q", stderr)
	}

	// Completing the holder frees the component.
	mustCLI(t, env, "operation", "complete", first)
	out := mustCLI(t, env, "operation", "start", second)
	if !strings.Contains(out, "is now in_progress") {
		t.Errorf("Start after release: %q", out)
	}
}

// TestCLIWorkflow_DraftValidation verifies client-side validation stops
// bad requests before they reach the coordinator.
func TestCLIWorkflow_DraftValidation(t *testing.T) {
	_, env := startServer(t)
	mustCLI(t, env, "auth", "login", "casey")

	_, stderr, err := runCLI(t, env, "operation", "create",
		"--title", "Missing everything else")
	if err == nil {
		t.Fatal("Creating an operation without components should fail")
	}
	if !strings.Contains(stderr, "Refusing to send the operation") {
		t.Errorf("Validation error not surfaced: %q", stderr)
	}
}
