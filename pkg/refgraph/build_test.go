package refgraph

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
)

const fixture = `{
  "targets": [
    {"isStage": true, "name": "Stage",
     "variables": {"gv": ["global", 0]},
     "lists": {"gl": ["items", []]},
     "broadcasts": {"bc": "go"},
     "blocks": {}, "comments": {}},
    {"isStage": false, "name": "Cat",
     "variables": {"lv": ["local", 0]}, "lists": {}, "broadcasts": {},
     "blocks": {
       "X": {"opcode": "event_whenflagclicked", "parent": null, "next": "Y", "topLevel": true},
       "Y": {"opcode": "data_setvariableto", "parent": "X", "next": "Z",
             "inputs": {"VALUE": [3, [12, "local", "lv"], [10, "0"]]},
             "fields": {"VARIABLE": ["global", "gv"]}},
       "Z": {"opcode": "event_broadcast", "parent": "Y", "next": null,
             "inputs": {"BROADCAST_INPUT": [1, [11, "go", "bc"]]}},
       "P": [13, "items", "gl", 10, 20]
     },
     "comments": {"c": {"blockId": "Z", "text": "note"}}}
  ],
  "monitors": [
    {"id": "gv", "opcode": "data_variable", "visible": true},
    {"id": "gl", "opcode": "data_listcontents", "visible": false},
    {"id": "Cat_x", "opcode": "motion_xposition", "visible": true}
  ]
}`

func mustParse(t *testing.T, doc string) *project.Project {
	t.Helper()
	p, err := project.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestBuildDiscoveryOrder(t *testing.T) {
	g, err := Build(mustParse(t, fixture), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var got []string
	for _, e := range g.Entries() {
		got = append(got, e.ID)
	}
	want := []string{"gv", "gl", "bc", "P", "X", "Y", "Z", "lv"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("discovery order = %v, want %v", got, want)
	}
	for i, e := range g.Entries() {
		if e.Order != i {
			t.Errorf("%s.Order = %d, want %d", e.ID, e.Order, i)
		}
	}
}

func TestBuildUses(t *testing.T) {
	g, err := Build(mustParse(t, fixture), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tests := []struct {
		id   string
		want int
	}{
		{"X", 1},  // Y.parent
		{"Y", 2},  // X.next, Z.parent
		{"Z", 2},  // Y.next, comment anchor
		{"P", 0},  // never referenced
		{"gv", 2}, // field, monitor
		{"gl", 2}, // primitive, monitor
		{"lv", 1}, // obscured-shadow input value
		{"bc", 1}, // broadcast input
		{"nope", 0},
	}
	for _, tt := range tests {
		if got := g.Uses(tt.id); got != tt.want {
			t.Errorf("Uses(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestBuildSkipMonitors(t *testing.T) {
	g, err := Build(mustParse(t, fixture), Options{SkipMonitors: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := g.Uses("gv"); got != 1 {
		t.Errorf("Uses(gv) = %d, want 1", got)
	}
	for _, e := range g.Entries() {
		for _, s := range e.Sites {
			if s.Owner.Kind == OwnerMonitor {
				t.Errorf("monitor site recorded: %s", s)
			}
		}
	}
}

func TestBuildSharedIdentifier(t *testing.T) {
	doc := `{"targets":[
		{"variables":{"dup":["a",0]},"blocks":{}},
		{"variables":{},"blocks":{"dup":{"opcode":"x","parent":null,"next":null}}}]}`
	g, err := Build(mustParse(t, doc), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	e, _ := g.Lookup("dup")
	if len(e.Declarations) != 2 {
		t.Errorf("declarations = %v, want 2", e.Declarations)
	}
	if s := g.Stats(); s.Shared != 1 || s.Variables != 1 || s.Blocks != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBuildUndeclared(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		opts     Options
		wantErr  bool
		reserved []string
	}{
		{
			name:    "missing next block",
			doc:     `{"targets":[{"blocks":{"a":{"opcode":"x","parent":null,"next":"ghost"}}}]}`,
			wantErr: true,
		},
		{
			name:    "missing variable",
			doc:     `{"targets":[{"blocks":{"a":{"opcode":"x","parent":null,"next":null,"fields":{"VARIABLE":["v","ghost"]}}}}]}`,
			wantErr: true,
		},
		{
			name:     "external variable allowed",
			doc:      `{"targets":[{"blocks":{"a":{"opcode":"x","parent":null,"next":null,"fields":{"VARIABLE":["v","ghost"]}}}}]}`,
			opts:     Options{AllowExternal: true},
			reserved: []string{"ghost"},
		},
		{
			name:    "external block never allowed",
			doc:     `{"targets":[{"blocks":{"a":{"opcode":"x","parent":"ghost","next":null}}}]}`,
			opts:    Options{AllowExternal: true},
			wantErr: true,
		},
		{
			name:     "sprite allows external broadcast",
			doc:      `{"name":"S","blocks":{"a":{"opcode":"event_whenbroadcastreceived","parent":null,"next":null,"fields":{"BROADCAST_OPTION":["go","bc"]}}}}`,
			reserved: []string{"bc"},
		},
		{
			name:     "stale monitor reserved",
			doc:      `{"targets":[{"blocks":{}}],"monitors":[{"id":"old","opcode":"data_variable","visible":true}]}`,
			reserved: []string{"old"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(mustParse(t, tt.doc), tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Build() succeeded, want error")
				}
				if !errors.Is(err, errors.ErrCodeGraphInconsistent) {
					t.Errorf("error code = %q, want GRAPH_INCONSISTENT", errors.GetCode(err))
				}
				if !stderrors.Is(err, ErrUndeclared) {
					t.Errorf("error %v does not wrap ErrUndeclared", err)
				}
				if !strings.Contains(err.Error(), "ghost") {
					t.Errorf("error %q does not name the identifier", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := g.Reserved(); strings.Join(got, ",") != strings.Join(tt.reserved, ",") {
				t.Errorf("Reserved() = %v, want %v", got, tt.reserved)
			}
		})
	}
}

func TestBuildDoesNotMutate(t *testing.T) {
	p := mustParse(t, fixture)
	before, _ := p.Encode()
	if _, err := Build(p, Options{}); err != nil {
		t.Fatal(err)
	}
	after, _ := p.Encode()
	if string(before) != string(after) {
		t.Error("Build modified the project")
	}
}

func TestPatchSiteReadWrite(t *testing.T) {
	p := mustParse(t, fixture)
	g, err := Build(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range g.Entries() {
		for _, s := range e.Sites {
			got, err := s.Read(p)
			if err != nil {
				t.Fatalf("%s: Read: %v", s, err)
			}
			if got != e.ID {
				t.Errorf("%s: Read = %q, want %q", s, got, e.ID)
			}
		}
	}

	e, _ := g.Lookup("lv")
	if err := e.Sites[0].Write(p, "new"); err != nil {
		t.Fatal(err)
	}
	in := p.Targets[1].Blocks["Y"].Block.Inputs["VALUE"]
	if in.Value.ID != "new" {
		t.Errorf("input value id = %q, want new", in.Value.ID)
	}
	if in.Obscured.Kind != project.ValueLiteral {
		t.Error("obscured shadow changed")
	}

	bad := PatchSite{Owner: Owner{Kind: OwnerBlock, Target: 5, Key: "X"}, Selector: Selector{Kind: SelNext}}
	if _, err := bad.Read(p); err == nil {
		t.Error("Read of a missing target succeeded")
	}
}

func TestStatsAndRanked(t *testing.T) {
	g, err := Build(mustParse(t, fixture), Options{})
	if err != nil {
		t.Fatal(err)
	}
	s := g.Stats()
	want := Stats{Identifiers: 8, Blocks: 4, Variables: 2, Lists: 1, Broadcasts: 1, Sites: 11, Unused: 1}
	want.IDBytes = s.IDBytes
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}

	var ids []string
	for _, e := range g.Ranked() {
		ids = append(ids, e.ID)
	}
	wantRanked := "gv,gl,Y,Z,bc,X,lv,P"
	if strings.Join(ids, ",") != wantRanked {
		t.Errorf("Ranked() = %v, want %s", ids, wantRanked)
	}
}

func TestToDOT(t *testing.T) {
	g, err := Build(mustParse(t, fixture), Options{})
	if err != nil {
		t.Fatal(err)
	}
	dot := g.ToDOT(map[string]string{"Y": "!"})
	for _, want := range []string{
		"digraph References {",
		`"id:X" -> "id:Y" [label="next"];`,
		`"comment:c" -> "id:Z"`,
		`"monitor:0" -> "id:gv"`,
		"Y → !",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q", want)
		}
	}
}

func TestBuildScope(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		opts    Options
		wantErr bool
	}{
		{
			name: "next names a variable",
			doc: `{"targets":[{"isStage":true,"variables":{"v1":["x",0]},"blocks":{
				"b1":{"opcode":"x","parent":null,"next":"v1"}}}]}`,
			wantErr: true,
		},
		{
			name: "variable field names a block",
			doc: `{"targets":[{"isStage":true,"blocks":{
				"b1":{"opcode":"x","parent":null,"next":null},
				"b2":{"opcode":"data_setvariableto","parent":null,"next":null,"fields":{"VARIABLE":["x","b1"]}}}}]}`,
			wantErr: true,
		},
		{
			name: "next into another target's blocks",
			doc: `{"targets":[
				{"isStage":true,"blocks":{"s1":{"opcode":"x","parent":null,"next":null}}},
				{"isStage":false,"blocks":{"c1":{"opcode":"x","parent":null,"next":"s1"}}}]}`,
			wantErr: true,
		},
		{
			name: "variable of a sibling sprite",
			doc: `{"targets":[
				{"isStage":true,"blocks":{}},
				{"isStage":false,"variables":{"dog-var":["d",0]},"blocks":{}},
				{"isStage":false,"blocks":{"c1":{"opcode":"x","parent":null,"next":null,"fields":{"VARIABLE":["d","dog-var"]}}}}]}`,
			wantErr: true,
		},
		{
			name: "category mismatch is not excused by allow-external",
			doc: `{"targets":[{"isStage":true,"lists":{"l1":["items",[]]},"blocks":{
				"b1":{"opcode":"x","parent":null,"next":null,"fields":{"VARIABLE":["x","l1"]}}}}]}`,
			opts:    Options{AllowExternal: true},
			wantErr: true,
		},
		{
			name: "sprite sees stage variables and broadcasts",
			doc: `{"targets":[
				{"isStage":true,"variables":{"gv":["g",0]},"broadcasts":{"bc":"go"},"blocks":{}},
				{"isStage":false,"blocks":{"c1":{"opcode":"x","parent":null,"next":null,
					"fields":{"VARIABLE":["g","gv"]},"inputs":{"B":[1,[11,"go","bc"]]}}}}]}`,
		},
		{
			name: "same string declared in both categories",
			doc: `{"targets":[{"isStage":true,"variables":{"dup":["d",0]},"blocks":{
				"dup":{"opcode":"x","parent":null,"next":null,"fields":{"VARIABLE":["d","dup"]}},
				"b2":{"opcode":"x","parent":"dup","next":null}}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(mustParse(t, tt.doc), tt.opts)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Build: %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrCodeGraphInconsistent) {
				t.Fatalf("Build() error = %v, want GRAPH_INCONSISTENT", err)
			}
			if !stderrors.Is(err, ErrOutOfScope) {
				t.Errorf("error %v does not wrap ErrOutOfScope", err)
			}
		})
	}
}

func TestBuildMonitorWrongCategoryReserved(t *testing.T) {
	doc := `{"targets":[{"isStage":true,"blocks":{"b1":{"opcode":"x","parent":null,"next":null}}}],
		"monitors":[{"id":"b1","opcode":"data_variable","visible":true}]}`
	g, err := Build(mustParse(t, doc), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Uses("b1") != 0 {
		t.Errorf("Uses(b1) = %d, want 0", g.Uses("b1"))
	}
	if got := g.Reserved(); len(got) != 1 || got[0] != "b1" {
		t.Errorf("Reserved() = %v, want [b1]", got)
	}
}
