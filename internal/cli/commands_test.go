package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/halflife/internal/ledger"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("halflife %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRegistryAndReportCommands(t *testing.T) {
	t.Setenv("HALFLIFE_DB", filepath.Join(t.TempDir(), "halflife.db"))
	t.Setenv("HALFLIFE_LOG_LEVEL", "error")

	if out := run(t, "user", "add", "u1", "Ada"); !strings.Contains(out, "user u1 registered") {
		t.Errorf("user add output = %q", out)
	}
	if out := run(t, "drink", "add", "americano", "Americano", "150"); !strings.Contains(out, "150.0 mg") {
		t.Errorf("drink add output = %q", out)
	}

	out := run(t, "report", "--user", "u1", "--kind", "weekly", "--date", "2026-10-18")
	if !strings.Contains(out, `"week": "2026-W42"`) {
		t.Errorf("weekly report output = %q", out)
	}

	out = run(t, "rebuild", "--user", "u1")
	if !strings.Contains(out, "0 intakes replayed") {
		t.Errorf("rebuild output = %q", out)
	}

	out = run(t, "window", "--user", "u1", "--at", "2026-10-18T12:00:00Z", "--radius", "1")
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("window printed %d lines, want 3:\n%s", lines, out)
	}
}

func TestPrintWindow(t *testing.T) {
	at := time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printWindow(&buf, []ledger.Point{
		{At: at, ResidualMg: 75},
		{At: at.Add(time.Hour), ResidualMg: 500},
	}, 100)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "10-18 13:00    75.0 mg ") || strings.Count(lines[0], "#") != 30 {
		t.Errorf("line 0 = %q", lines[0])
	}
	if strings.Count(lines[1], "#") != 80 {
		t.Errorf("bar should cap at 80 columns: %q", lines[1])
	}
}

func TestVersionCommand(t *testing.T) {
	out := run(t, "version", "--json")
	if !strings.Contains(out, `"version": "dev"`) || !strings.Contains(out, `"go_version": "go`) {
		t.Errorf("version output = %q", out)
	}
}
