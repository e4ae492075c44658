package root

import (
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/termflow/internal/cli/spec"
)

// constraintRules maps a constraint type to a check over which of its fields
// were given. A non-empty result is the error message.
var constraintRules = map[string]func(fields []string, present []bool) string{
	"exactly_one": func(fields []string, present []bool) string {
		if count(present) != 1 {
			return "exactly one of " + strings.Join(fields, ", ") + " is required"
		}
		return ""
	},
	"at_least_one": func(fields []string, present []bool) string {
		if count(present) == 0 {
			return "at least one of " + strings.Join(fields, ", ") + " is required"
		}
		return ""
	},
	"requires": func(fields []string, present []bool) string {
		if present[0] && slices.Contains(present[1:], false) {
			return fields[0] + " requires " + strings.Join(fields[1:], ", ")
		}
		return ""
	},
	"excludes": func(fields []string, present []bool) string {
		if count(present) > 1 {
			return "only one of " + strings.Join(fields, ", ") + " may be set"
		}
		return ""
	},
}

func validateArgs(cmdSpec spec.Command, cmd *cli.Command) error {
	for _, arg := range cmdSpec.Args {
		if arg.Required && !argPresent(arg, cmd) {
			return fmt.Errorf("missing argument %q", arg.Name)
		}
	}
	return nil
}

func validateConstraints(cmdSpec spec.Command, cmd *cli.Command) error {
	for _, c := range cmdSpec.Constraints {
		rule, ok := constraintRules[strings.TrimSpace(c.Type)]
		if !ok || len(c.Fields) == 0 {
			continue
		}
		present := make([]bool, len(c.Fields))
		for i, field := range c.Fields {
			present[i] = fieldPresent(strings.TrimSpace(field), cmdSpec, cmd)
		}
		if msg := rule(c.Fields, present); msg != "" {
			return fmt.Errorf("%s", msg)
		}
	}
	return nil
}

func count(present []bool) int {
	n := 0
	for _, ok := range present {
		if ok {
			n++
		}
	}
	return n
}

func argPresent(arg spec.Arg, cmd *cli.Command) bool {
	name := strings.TrimSpace(arg.Name)
	if name == "" {
		return true
	}
	if arg.Variadic {
		return slices.ContainsFunc(cmd.StringArgs(name), func(v string) bool { return strings.TrimSpace(v) != "" })
	}
	return strings.TrimSpace(cmd.StringArg(name)) != ""
}

func fieldPresent(field string, cmdSpec spec.Command, cmd *cli.Command) bool {
	if field == "" {
		return false
	}
	if i := slices.IndexFunc(cmdSpec.Args, func(a spec.Arg) bool { return a.Name == field }); i >= 0 {
		return argPresent(cmdSpec.Args[i], cmd)
	}
	return cmd.IsSet(field)
}
