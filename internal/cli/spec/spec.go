package spec

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// File is the embedded command tree every binary is built from.
const File = "commands.yaml"

//go:embed commands.yaml commands.schema.json
var embeddedFS embed.FS

// Spec is the declarative command tree the CLI is built from.
type Spec struct {
	Version     int       `yaml:"version"`
	App         AppSpec   `yaml:"app"`
	GlobalFlags []Flag    `yaml:"global_flags"`
	Commands    []Command `yaml:"commands"`
}

// AppSpec configures the top-level CLI app.
type AppSpec struct {
	Name           string `yaml:"name"`
	Summary        string `yaml:"summary"`
	DefaultCommand string `yaml:"default_command"`
}

// Flag describes a CLI flag.
type Flag struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Default     any      `yaml:"default"`
	Enum        []string `yaml:"enum"`
	Repeatable  bool     `yaml:"repeatable"`
	Description string   `yaml:"description"`
	Env         string   `yaml:"env"`
	Hidden      bool     `yaml:"hidden"`
}

// Arg describes a positional argument.
type Arg struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Variadic    bool     `yaml:"variadic"`
	Enum        []string `yaml:"enum"`
	Description string   `yaml:"description"`
}

// Constraint describes argument/flag validation rules
// (exactly_one, at_least_one, requires, excludes).
type Constraint struct {
	Type   string   `yaml:"type"`
	Fields []string `yaml:"fields"`
}

// JSONSpec declares JSON output capability.
type JSONSpec struct {
	Supported bool `yaml:"supported"`
}

// Command describes a CLI command and its subcommands.
type Command struct {
	Name        string       `yaml:"name"`
	ID          string       `yaml:"id"`
	Summary     string       `yaml:"summary"`
	Description string       `yaml:"description"`
	Aliases     []string     `yaml:"aliases"`
	Flags       []Flag       `yaml:"flags"`
	Args        []Arg        `yaml:"args"`
	Constraints []Constraint `yaml:"constraints"`
	JSON        *JSONSpec    `yaml:"json"`
	Hidden      bool         `yaml:"hidden"`
	Subcommands []Command    `yaml:"subcommands"`
}

// LoadDefault parses the embedded commands.yaml.
func LoadDefault() (*Spec, error) {
	data, err := embeddedFS.ReadFile(File)
	if err != nil {
		return nil, fmt.Errorf("read embedded commands: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the schema, decodes it and checks the rules
// the schema cannot express.
func Parse(data []byte) (*Spec, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	doc := &Spec{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse commands yaml: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return doc, nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	raw, err := embeddedFS.ReadFile("commands.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("commands.schema.json", doc); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return c.Compile("commands.schema.json")
})

// Validate checks YAML against commands.schema.json.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("command spec is empty")
	}
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse commands yaml: %w", err)
	}
	doc, err := toJSONValue(raw)
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("commands schema validation: %w", err)
	}
	return nil
}

// toJSONValue rewrites a decoded YAML tree into the shapes encoding/json
// produces, which is what the schema validator expects.
func toJSONValue(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			conv, err := toJSONValue(val)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			conv, err := toJSONValue(val)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case int:
		return json.Number(strconv.Itoa(v)), nil
	case float64:
		return json.Number(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case string, bool, nil:
		return v, nil
	default:
		return nil, fmt.Errorf("commands yaml: unsupported value %T", v)
	}
}

// check enforces unique ids and that constraints name declared fields.
func (s *Spec) check() error {
	seen := map[string]bool{}
	for cmd := range s.Walk() {
		if seen[cmd.ID] {
			return fmt.Errorf("commands: duplicate id %q", cmd.ID)
		}
		seen[cmd.ID] = true
		for _, c := range cmd.Constraints {
			for _, field := range c.Fields {
				if !cmd.declares(field) {
					return fmt.Errorf("commands: %s: constraint %s names unknown field %q", cmd.ID, c.Type, field)
				}
			}
		}
	}
	if def := strings.TrimSpace(s.App.DefaultCommand); def != "" && !seen[def] {
		return fmt.Errorf("commands: default_command %q is not a command id", def)
	}
	return nil
}

func (c Command) declares(field string) bool {
	for _, a := range c.Args {
		if a.Name == field {
			return true
		}
	}
	for _, f := range c.Flags {
		if f.Name == field {
			return true
		}
	}
	return false
}

// Walk yields every command depth-first, parents before children.
func (s *Spec) Walk() iter.Seq[Command] {
	return func(yield func(Command) bool) {
		for _, c := range s.Paths() {
			if !yield(c) {
				return
			}
		}
	}
}

// Paths yields every command with its invocation path ("config init") in
// Walk order.
func (s *Spec) Paths() iter.Seq2[string, Command] {
	return func(yield func(string, Command) bool) {
		if s == nil {
			return
		}
		var visit func(string, Command) bool
		visit = func(parent string, c Command) bool {
			path := strings.TrimSpace(parent + " " + c.Name)
			if !yield(path, c) {
				return false
			}
			for _, sub := range c.Subcommands {
				if !visit(path, sub) {
					return false
				}
			}
			return true
		}
		for _, c := range s.Commands {
			if !visit("", c) {
				return
			}
		}
	}
}

// PathOf returns the invocation path of the command with the given id, or
// the id itself when no command matches.
func (s *Spec) PathOf(id string) string {
	for path, cmd := range s.Paths() {
		if cmd.ID == id {
			return path
		}
	}
	return id
}

// AllCommands returns Walk as a slice.
func (s *Spec) AllCommands() []Command {
	return slices.Collect(s.Walk())
}

// FindByID returns a copy of the command with the given id, or nil.
func (s *Spec) FindByID(id string) *Command {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	for cmd := range s.Walk() {
		if cmd.ID == id {
			return &cmd
		}
	}
	return nil
}
