package spec

import "testing"

func TestValidateRejectsMissingName(t *testing.T) {
	yaml := []byte("version: 1\napp: {}\ncommands: []\n")
	if _, err := Parse(yaml); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsUnknownFlagType(t *testing.T) {
	yaml := []byte(`version: 1
app: {name: x}
commands:
  - name: a
    id: a
    flags:
      - name: f
        type: bytes
`)
	if _, err := Parse(yaml); err == nil {
		t.Fatalf("expected validation error for flag type")
	}
}

func TestAllCommandsAndFindByID(t *testing.T) {
	specDoc, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	for _, id := range []string{"run", "bench", "config.init", "config.defaults", "config.validate", "config.path", "version"} {
		cmd := specDoc.FindByID(id)
		if cmd == nil || cmd.Name == "" {
			t.Fatalf("expected %s command", id)
		}
	}
	if specDoc.FindByID("") != nil || specDoc.FindByID("pane.send") != nil {
		t.Fatalf("unexpected command match")
	}
	if got := len(specDoc.AllCommands()); got != 8 {
		t.Fatalf("AllCommands() = %d, want 8", got)
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	yaml := []byte(`version: 1
app: {name: x}
commands:
  - name: a
    id: same
  - name: b
    id: same
`)
	if _, err := Parse(yaml); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestParseRejectsUnknownConstraintField(t *testing.T) {
	yaml := []byte(`version: 1
app: {name: x}
commands:
  - name: a
    id: a
    flags:
      - name: f
        type: string
    constraints:
      - type: excludes
        fields: [f, g]
`)
	if _, err := Parse(yaml); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestWalkStopsEarly(t *testing.T) {
	specDoc, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	n := 0
	for range specDoc.Walk() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("walked %d", n)
	}
	var nilSpec *Spec
	if nilSpec.AllCommands() != nil {
		t.Fatalf("nil spec should have no commands")
	}
}

func TestPathsNameNestedCommands(t *testing.T) {
	specDoc, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	paths := map[string]string{}
	for path, cmd := range specDoc.Paths() {
		paths[cmd.ID] = path
	}
	want := map[string]string{
		"run":             "run",
		"bench":           "bench",
		"config":          "config",
		"config.init":     "config init",
		"config.validate": "config validate",
		"version":         "version",
	}
	for id, path := range want {
		if paths[id] != path {
			t.Fatalf("path of %s = %q, want %q", id, paths[id], path)
		}
	}
	if got := specDoc.PathOf("config.path"); got != "config path" {
		t.Fatalf("PathOf(config.path) = %q", got)
	}
	if got := specDoc.PathOf("nope"); got != "nope" {
		t.Fatalf("PathOf(unknown) = %q", got)
	}
}
