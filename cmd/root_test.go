package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/xerr"
)

func TestRootCmdHasVerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	if flag == nil {
		t.Fatal("persistent flag --verbose not found")
	}
	if flag.Shorthand != "v" {
		t.Errorf("verbose shorthand = %q, want \"v\"", flag.Shorthand)
	}
}

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	want := []string{"ld", "info", "df", "ls", "mkdir", "mv", "rm", "dl", "ul"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[strings.Fields(c.Use)[0]] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmdHelpOutput(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"elektroid", "ls", "dl", "ul"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output should mention %q", want)
		}
	}
}

func TestExitCodeMapsKinds(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{xerr.New(xerr.KindNotConnected, "t", nil), 2},
		{xerr.New(xerr.KindTimedOut, "t", nil), 3},
		{xerr.New(xerr.KindNotFound, "t", nil), 8},
		{xerr.New(xerr.KindBadInput, "t", nil), 12},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestExitCodeUnwrapsNestedErrors(t *testing.T) {
	err := errors.Join(errors.New("outer"))
	if got := exitCode(err); got != 1 {
		t.Errorf("exitCode(joined plain) = %d, want 1", got)
	}

	wrapped := fmt.Errorf("outer: %w", xerr.New(xerr.KindNotFound, "t", nil))
	if got := exitCode(wrapped); got != 8 {
		t.Errorf("exitCode(wrapped NotFound) = %d, want 8", got)
	}
}

func TestSplitDeviceArg(t *testing.T) {
	tests := []struct {
		arg        string
		wantDevice string
		wantPath   string
	}{
		{"system", "system", "/"},
		{"system/", "system", "/"},
		{"system/home/user", "system", "/home/user"},
		{"Elektron Digitakt/0", "Elektron Digitakt", "/0"},
	}
	for _, tt := range tests {
		device, path := splitDeviceArg(tt.arg)
		if device != tt.wantDevice || path != tt.wantPath {
			t.Errorf("splitDeviceArg(%q) = (%q, %q), want (%q, %q)",
				tt.arg, device, path, tt.wantDevice, tt.wantPath)
		}
	}
}

func TestFormatItem(t *testing.T) {
	it := fsops.Item{Name: "kick.wav", Kind: fsops.KindFile, Size: 1024, ID: 17}
	got := formatItem(it)
	for _, want := range []string{"f", "1024", "17", "kick.wav"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatItem = %q, should contain %q", got, want)
		}
	}

	dir := fsops.Item{Name: "samples", Kind: fsops.KindDir, Size: -1, ID: -1}
	got = formatItem(dir)
	if !strings.HasPrefix(got, "d\t") {
		t.Errorf("directory should format with kind d, got %q", got)
	}
	if !strings.Contains(got, "-") {
		t.Errorf("unknown size and slot should render as -, got %q", got)
	}
}
