package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sb3min/pkg/config"
	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/pipeline"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(&bytes.Buffer{}, log.InfoLevel)
	root := c.RootCommand()

	for _, name := range []string{"compact", "inspect", "graph", "serve", "cache", "config", "completion"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestCompactOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*config.Config)
		args []string
		want pipeline.Options
	}{
		{
			name: "defaults",
			want: pipeline.Options{Monitors: "none", Enumeration: "product"},
		},
		{
			name: "config applies when flag unset",
			cfg: func(c *config.Config) {
				c.Compact.Overwrite = true
				c.Compact.Monitors = "hidden"
			},
			want: pipeline.Options{Overwrite: true, Monitors: "hidden", Enumeration: "product"},
		},
		{
			name: "flag beats config",
			cfg: func(c *config.Config) {
				c.Compact.Monitors = "hidden"
				c.Compact.AllowExternal = true
			},
			args: []string{"--monitors", "none", "--allow-external=false", "--enumeration", "combinations"},
			want: pipeline.Options{Monitors: "none", Enumeration: "combinations"},
		},
		{
			name: "remove-monitors shorthand",
			args: []string{"--remove-monitors", "--no-cache", "-f"},
			want: pipeline.Options{Monitors: "all", Enumeration: "product", NoCache: true, Overwrite: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&bytes.Buffer{}, log.InfoLevel)
			if tt.cfg != nil {
				tt.cfg(&c.Config)
			}
			var flags compactFlags
			cmd := &cobra.Command{Use: "compact"}
			bindCompactFlags(cmd.Flags(), &flags)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			cmd.SetContext(context.Background())
			got := c.compactOptions(cmd, flags)
			if got.Logger == nil {
				t.Error("compactOptions() left Logger nil")
			}
			got.Logger = nil
			if got != tt.want {
				t.Errorf("compactOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(1, 4); got != "25.0%" {
		t.Errorf("formatPercent(1, 4) = %q", got)
	}
	if got := formatPercent(1, 0); got != "—" {
		t.Errorf("formatPercent(1, 0) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer name", 6, "a lon…"},
		{"héllo wörld", 5, "héll…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestIDListModel(t *testing.T) {
	in := &pipeline.Inspection{
		Source: "game.sb3",
		Kind:   "project",
		Ranked: []pipeline.RankedID{
			{ID: "var-a", Category: "variable", Uses: 5, Code: "!"},
			{ID: "blk-a", Category: "block", Uses: 3, Code: "#"},
			{ID: "var-b", Category: "variable", Uses: 1, Code: "$"},
		},
	}
	m := NewIDListModel(in)

	key := func(m IDListModel, k string) IDListModel {
		var msg tea.KeyMsg
		switch k {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		}
		next, _ := m.Update(msg)
		return next.(IDListModel)
	}

	m = key(m, "down")
	m = key(m, "down")
	m = key(m, "down")
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d after moving past the end, want 2", m.Cursor)
	}
	m = key(m, "up")
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want 1", m.Cursor)
	}

	m = key(m, "tab") // block
	if m.Filter != "block" || len(m.Items) != 1 || m.Cursor != 0 {
		t.Errorf("Filter = %q, Items = %d, Cursor = %d", m.Filter, len(m.Items), m.Cursor)
	}
	m = key(m, "tab") // variable
	if len(m.Items) != 2 {
		t.Errorf("variable filter kept %d items", len(m.Items))
	}

	if v := m.View(); !bytes.Contains([]byte(v), []byte("var-a")) {
		t.Errorf("View() does not list var-a:\n%s", v)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q should quit")
	}
}

func TestIDListModelEmpty(t *testing.T) {
	m := NewIDListModel(&pipeline.Inspection{Source: "empty.sprite3", Kind: "sprite"})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if next.(IDListModel).Cursor != 0 {
		t.Error("cursor moved in an empty list")
	}
	_ = m.View()
}

func TestConfigPathFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[compact]\nmonitors = \"all\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(&bytes.Buffer{}, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", path, "config", "path"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Config.Compact.Monitors != "all" {
		t.Errorf("Monitors = %q, config file not applied", c.Config.Compact.Monitors)
	}
	got, err := c.resolvedConfigPath()
	if err != nil || got != path {
		t.Errorf("resolvedConfigPath() = %q, %v", got, err)
	}
}

func TestMissingConfigFails(t *testing.T) {
	c := New(&bytes.Buffer{}, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.toml"), "config", "show"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestPrintFailure(t *testing.T) {
	err := fmt.Errorf("load: %w", errors.Wrap(errors.ErrCodeFileNotFound, os.ErrNotExist, "file %q does not exist", "game.sb3"))

	c := New(&bytes.Buffer{}, log.InfoLevel)
	var buf bytes.Buffer
	c.PrintFailure(&buf, err)
	out := buf.String()
	if !strings.Contains(out, `container error: file "game.sb3" does not exist`) {
		t.Errorf("PrintFailure() = %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected a single line by default, got %q", out)
	}

	c.verbosity = 2
	buf.Reset()
	c.PrintFailure(&buf, err)
	if !strings.Contains(buf.String(), os.ErrNotExist.Error()) {
		t.Errorf("verbose PrintFailure() lacks the root cause: %q", buf.String())
	}
}

func TestCompletions(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"compact", "--monitors", ""}, []string{"none", "all", "hidden", ":4"}},
		{[]string{"graph", "game.sb3", "--format", ""}, []string{"dot", "svg", ":4"}},
		{[]string{"inspect", "a.sb3", ""}, []string{"sb3", "sprite3", ":8"}},
		{[]string{"graph", "game.sb3", ""}, []string{":4"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			c := New(&bytes.Buffer{}, log.InfoLevel)
			root := c.RootCommand()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(append([]string{cobra.ShellCompRequestCmd}, tt.args...))
			if err := root.ExecuteContext(context.Background()); err != nil {
				t.Fatal(err)
			}
			got := strings.Fields(out.String())
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("completions = %q, want %q", got, tt.want)
			}
		})
	}
}
