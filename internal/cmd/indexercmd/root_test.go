package indexercmd

import "testing"

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "2026-01-01T00:00:00Z")
	if rootCmd.Version == "" {
		t.Fatal("expected rootCmd.Version to be set")
	}
}

func TestExecuteWithHelpFlag(t *testing.T) {
	rootCmd.SetArgs([]string{"--help"})
	if err := Execute(); err != nil {
		t.Fatalf("Execute() with --help returned error: %v", err)
	}
}
