package commands

import (
	"bytes"
	"strings"
	"testing"
)

// execute runs the root command with args and returns what it wrote to
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return stdout.String(), stderr.String(), err
}

func TestExecute_ErrorReportedOnce(t *testing.T) {
	_, stderr, err := execute(t, "templates", "show", "no such template")
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
	if n := strings.Count(stderr, "unknown template"); n != 1 {
		t.Errorf("error reported %d times, want 1:\n%s", n, stderr)
	}
	if !strings.HasPrefix(stderr, "Error: ") {
		t.Errorf("expected Error: prefix, got %q", stderr)
	}
}

func TestServe_StoreErrorReportedOnce(t *testing.T) {
	_, stderr, err := execute(t, "serve", "-q",
		"--postgres-url", "postgres://user@localhost:notaport/rules")
	if err == nil {
		t.Fatal("expected error for an invalid postgres url")
	}
	if n := strings.Count(stderr, "failed to open rule store"); n != 1 {
		t.Errorf("store error reported %d times, want 1:\n%s", n, stderr)
	}
}

func TestTemplatesList(t *testing.T) {
	stdout, _, err := execute(t, "templates", "list")
	if err != nil {
		t.Fatalf("templates list error = %v", err)
	}
	for _, want := range []string{"NAME", "Contact Information"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersion_Short(t *testing.T) {
	stdout, _, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(stdout) == "" || strings.Contains(stdout, "Commit:") {
		t.Errorf("unexpected short version output %q", stdout)
	}
}
