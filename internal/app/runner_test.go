package app

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	// Isolate from the developer's real config and environment.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	for _, key := range []string{
		"MARGINFI_RPC_URL", "MY_MAINNET_URL", "MARGINFI_NETWORK",
		"MARGINFI_SNAPSHOT", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}

	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "0.1.0") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestBanksWithoutEndpointIsConfigError(t *testing.T) {
	code, _, stderr := runCLI(t, "banks")
	if code != 10 {
		t.Fatalf("exit = %d, want 10 (configuration error), stderr %q", code, stderr)
	}
	if !strings.Contains(stderr, "rpc url") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestBanksUnknownNetwork(t *testing.T) {
	code, _, _ := runCLI(t, "banks", "--rpc-url", "http://127.0.0.1:1", "--network", "mars")
	if code != 10 {
		t.Fatalf("exit = %d, want 10", code)
	}
}

func TestConflictingOutputFlags(t *testing.T) {
	code, _, stderr := runCLI(t, "banks", "--json", "--plain")
	if code != 2 {
		t.Fatalf("exit = %d, want 2 (usage), stderr %q", code, stderr)
	}
}

func TestAskAnswersWithoutDataOffline(t *testing.T) {
	// A snapshot path satisfies chain validation; the missing file means no
	// data, and the router must still answer the greeting.
	missing := filepath.Join(t.TempDir(), "absent.json")
	code, stdout, _ := runCLI(t, "ask", "hello", "--snapshot", missing)
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Hello") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestUnknownCommand(t *testing.T) {
	code, _, _ := runCLI(t, "definitely-not-a-command")
	if code == 0 {
		t.Fatal("unknown command must not exit 0")
	}
}
