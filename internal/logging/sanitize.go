package logging

import (
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

const redacted = "<redacted>"

var (
	secretName   = regexp.MustCompile(`(?i)(token|secret|passw(or)?d|pass|api[-_]?key|auth(orization)?|bearer|cookie|credential)`)
	bearerHeader = regexp.MustCompile(`(?i)\b(bearer)\s+\S+`)
)

// SanitizeArgv returns a copy of argv with secret-looking values replaced:
// NAME=value assignments and --flag=value / --flag value pairs whose name
// looks sensitive, and bearer tokens inside header arguments.
func SanitizeArgv(argv []string) []string {
	out := make([]string, len(argv))
	redactNext := false
	for i, arg := range argv {
		if redactNext {
			out[i] = redacted
			redactNext = false
			continue
		}
		out[i] = sanitizeArg(arg)
		if strings.HasPrefix(arg, "-") && !strings.Contains(arg, "=") && secretName.MatchString(arg) {
			redactNext = true
		}
	}
	return out
}

func sanitizeArg(arg string) string {
	if name, _, ok := strings.Cut(arg, "="); ok && secretName.MatchString(name) && !strings.ContainsAny(name, " \t") {
		return name + "=" + redacted
	}
	return bearerHeader.ReplaceAllString(arg, "$1 "+redacted)
}

// SanitizeCommand redacts a shell command line. Lines that do not split as
// shell words are redacted per whitespace field.
func SanitizeCommand(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	words, err := shellquote.Split(line)
	if err != nil {
		words = strings.Fields(line)
	}
	return shellquote.Join(SanitizeArgv(words)...)
}
