package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/observability"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

const doc = `{"targets":[
	{"isStage":true,"name":"Stage","variables":{"variable-long-id":["score",0]},
	 "lists":{},"broadcasts":{"broadcast-long-id":"go"},"blocks":{}},
	{"isStage":false,"name":"Cat","variables":{},"lists":{},"broadcasts":{},
	 "blocks":{
	   "block-first":{"opcode":"event_whenflagclicked","parent":null,"next":"block-second","topLevel":true},
	   "block-second":{"opcode":"data_changevariableby","parent":"block-first","next":null,
	     "fields":{"VARIABLE":["score","variable-long-id"]}}}}],
	"monitors":[{"id":"variable-long-id","opcode":"data_variable","visible":false}],
	"meta":{"semver":"3.0.0"}}`

func writeProject(t *testing.T, dir, name, json string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	mod := time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC)
	for _, m := range []struct{ name, data string }{
		{"costume.svg", "<svg/>"},
		{sb3.ProjectMember, json},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Deflate, Modified: mod})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, m.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readMember(t *testing.T, path string) string {
	t.Helper()
	a, err := sb3.Open(path, sb3.OpenOptions{})
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	return string(a.JSON)
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"hidden monitors", Options{Monitors: "hidden"}, false},
		{"combinations", Options{Enumeration: "combinations"}, false},
		{"bad monitors", Options{Monitors: "some"}, true},
		{"bad enumeration", Options{Enumeration: "random"}, true},
		{"duplicate alphabet symbols", Options{Alphabet: "aab"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.opts.Logger == nil {
				t.Error("Logger not defaulted")
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var opts Options
	opts.SetDefaults()
	if opts.Monitors != DefaultMonitors || opts.Enumeration != DefaultEnumeration || opts.Alphabet == "" {
		t.Errorf("SetDefaults() = %+v", opts)
	}
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	original, _ := os.ReadFile(src)

	r := NewRunner(nil, nil, nil)
	result, err := r.Execute(context.Background(), src, "", Options{Monitors: "all"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	dest := filepath.Join(dir, "game.min.sb3")
	if result.Output.Path != dest {
		t.Errorf("Output.Path = %q, want %q", result.Output.Path, dest)
	}
	if result.Stats.Identifiers != 4 {
		t.Errorf("Identifiers = %d, want 4", result.Stats.Identifiers)
	}
	if result.Monitors.Removed != 1 {
		t.Errorf("Monitors.Removed = %d, want 1", result.Monitors.Removed)
	}
	if result.Stats.JSONSaved() <= 0 {
		t.Errorf("JSONSaved() = %d, want > 0", result.Stats.JSONSaved())
	}

	out := readMember(t, dest)
	for _, old := range []string{"block-first", "block-second", "variable-long-id", "broadcast-long-id"} {
		if strings.Contains(out, old) {
			t.Errorf("output still contains %q", old)
		}
	}
	if !strings.Contains(out, `"monitors":[]`) {
		t.Errorf("monitors not cleared: %s", out)
	}
	if now, _ := os.ReadFile(src); !bytes.Equal(now, original) {
		t.Error("source file was modified")
	}
}

func TestExecuteDeterministic(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	r := NewRunner(nil, nil, nil)

	var outs [][]byte
	for _, name := range []string{"a.sb3", "b.sb3"} {
		dest := filepath.Join(dir, name)
		if _, err := r.Execute(context.Background(), src, dest, Options{}); err != nil {
			t.Fatal(err)
		}
		data, _ := os.ReadFile(dest)
		outs = append(outs, data)
	}
	if !bytes.Equal(outs[0], outs[1]) {
		t.Error("two runs produced different containers")
	}
}

func TestExecuteDestinationConflict(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	original, _ := os.ReadFile(src)

	r := NewRunner(nil, nil, nil)
	_, err := r.Execute(context.Background(), src, src, Options{Overwrite: true})
	if !errors.Is(err, errors.ErrCodeDestinationConflict) {
		t.Fatalf("Execute() error = %v, want DESTINATION_CONFLICT", err)
	}
	if errors.Category(err) != errors.KindDestination {
		t.Errorf("Category = %s", errors.Category(err))
	}
	if now, _ := os.ReadFile(src); !bytes.Equal(now, original) {
		t.Error("source file was modified")
	}
}

func TestExecuteGraphInconsistent(t *testing.T) {
	dir := t.TempDir()
	broken := strings.Replace(doc, `"next":null`, `"next":"missing-block"`, 1)
	src := writeProject(t, dir, "game.sb3", broken)
	dest := filepath.Join(dir, "out.sb3")

	r := NewRunner(nil, nil, nil)
	_, err := r.Execute(context.Background(), src, dest, Options{})
	if errors.Category(err) != errors.KindGraph {
		t.Fatalf("Execute() error = %v, want graph category", err)
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		t.Error("destination written despite failure")
	}
}

func TestExecuteDebugJSON(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	debug := filepath.Join(dir, sb3.ProjectMember)

	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(context.Background(), src, "", Options{DebugJSON: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(debug); err == nil {
		t.Fatal("debug JSON written without overwrite")
	}

	if _, err := r.Execute(context.Background(), src, "", Options{DebugJSON: true, Overwrite: true}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(debug)
	if err != nil {
		t.Fatalf("debug JSON missing: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("{\n    ")) {
		t.Errorf("debug JSON not pretty-printed: %.30q", data)
	}
}

func TestCompactNoRename(t *testing.T) {
	dir := t.TempDir()
	a, err := sb3.Open(writeProject(t, dir, "game.sb3", doc), sb3.OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	result, err := NewRunner(nil, nil, nil).Compact(context.Background(), a, Options{NoRename: true, Monitors: "hidden"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Graph != nil || result.Stats.Identifiers != 0 {
		t.Error("identifiers renamed with NoRename")
	}
	if result.Monitors.Removed != 1 || len(result.Project.Monitors) != 0 {
		t.Errorf("hidden monitor not removed: %+v", result.Monitors)
	}
	if _, ok := result.Project.Targets[1].Blocks["block-first"]; !ok {
		t.Error("block key changed with NoRename")
	}
}

func TestCompactUsesCache(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	defer r.Close()

	var encoded [][]byte
	var hits []bool
	for i := 0; i < 2; i++ {
		a, err := r.Load(context.Background(), src, Options{})
		if err != nil {
			t.Fatal(err)
		}
		result, err := r.Compact(context.Background(), a, Options{})
		if err != nil {
			t.Fatal(err)
		}
		data, _ := result.Project.Encode()
		encoded = append(encoded, data)
		hits = append(hits, result.CacheInfo.ResultHit)
		if a.Project != result.Project {
			t.Error("archive project not replaced by the compacted document")
		}
	}
	if hits[0] || !hits[1] {
		t.Errorf("cache hits = %v, want [false true]", hits)
	}
	if !bytes.Equal(encoded[0], encoded[1]) {
		t.Error("cached result differs from computed result")
	}

	a, _ := r.Load(context.Background(), src, Options{})
	result, err := r.Compact(context.Background(), a, Options{Enumeration: "combinations"})
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheInfo.ResultHit {
		t.Error("different options hit the same cache entry")
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	events []string
}

func (h *recordingHooks) OnLoadStart(context.Context, string) { h.events = append(h.events, "load") }
func (h *recordingHooks) OnRenameStart(context.Context, int)  { h.events = append(h.events, "rename") }
func (h *recordingHooks) OnSaveStart(context.Context, string) { h.events = append(h.events, "save") }

func TestExecuteEmitsHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	if _, err := NewRunner(nil, nil, nil).Execute(context.Background(), src, "", Options{}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(hooks.events, ","); got != "load,rename,save" {
		t.Errorf("events = %s, want load,rename,save", got)
	}
}

func TestExecuteCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(nil, nil, nil).Execute(ctx, src, "", Options{}); err == nil {
		t.Fatal("Execute succeeded with a cancelled context")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir, "game.sb3", doc)
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)

	a, err := r.Load(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	before := string(a.JSON)

	in, err := r.Inspect(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if in.Kind != "project" || in.Member != sb3.ProjectMember {
		t.Errorf("Kind, Member = %q, %q", in.Kind, in.Member)
	}
	if in.Graph.Identifiers != 4 || in.Counts.Blocks != 2 {
		t.Errorf("Graph = %+v, Counts = %+v", in.Graph, in.Counts)
	}
	if in.Savings <= 0 {
		t.Errorf("Savings = %d", in.Savings)
	}
	// variable-long-id: one field reference and one monitor.
	if top := in.Top(1); len(top) != 1 || top[0].ID != "variable-long-id" || top[0].Code != "!" {
		t.Errorf("Top(1) = %+v", top)
	}
	if len(in.Top(0)) != 4 {
		t.Errorf("Top(0) returned %d entries", len(in.Top(0)))
	}
	if string(a.JSON) != before || a.Project.Targets[1].Blocks["block-first"] == nil {
		t.Error("Inspect modified the archive")
	}

	again, err := r.Inspect(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || again.Savings != in.Savings {
		t.Errorf("second Inspect cached=%v savings=%d", again.Cached, again.Savings)
	}
}

func TestGraph(t *testing.T) {
	src := writeProject(t, t.TempDir(), "game.sb3", doc)
	r := NewRunner(nil, nil, nil)
	a, err := r.Load(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}

	g, names, err := r.Graph(context.Background(), a, Options{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 4 || names != nil {
		t.Errorf("Len() = %d, names = %v", g.Len(), names)
	}

	g, names, err = r.Graph(context.Background(), a, Options{Monitors: "all"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != g.Len() {
		t.Errorf("got %d names for %d identifiers", len(names), g.Len())
	}
	if g.Uses("variable-long-id") != 1 {
		t.Errorf("Uses(variable-long-id) = %d, want 1 without monitors", g.Uses("variable-long-id"))
	}

	if _, _, err := r.Graph(context.Background(), a, Options{Enumeration: "zigzag"}, true); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad enumeration error = %v", err)
	}
}

// countingKeyer records how often keys are derived.
type countingKeyer struct {
	cache.Keyer
	calls int
}

func (k *countingKeyer) ResultKey(h string, o cache.ResultKeyOpts) string {
	k.calls++
	return k.Keyer.ResultKey(h, o)
}

func (k *countingKeyer) StatsKey(h string) string {
	k.calls++
	return k.Keyer.StatsKey(h)
}

func TestDisabledCacheSkipsKeys(t *testing.T) {
	ctx := context.Background()
	src := writeProject(t, t.TempDir(), "game.sb3", doc)
	keyer := &countingKeyer{Keyer: cache.NewDefaultKeyer()}
	r := NewRunner(nil, keyer, nil)

	archive, err := r.Load(ctx, src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Inspect(ctx, archive); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if _, err := r.Compact(ctx, archive, Options{}); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if keyer.calls != 0 {
		t.Errorf("keyer called %d times with caching disabled", keyer.calls)
	}
}
