package identity

import (
	"path/filepath"
	"strings"
)

const (
	BrandName = "termflow"
	// AppSlug names on-disk state (config dir, log file).
	AppSlug = "termflow"
	CLIName = "termflow"
)

var (
	InputAliases = []string{"tf"}
)

// ResolveBinaryName returns the CLI name to show in help output, based on
// argv[0]. Unknown names fall back to CLIName.
func ResolveBinaryName(args []string) string {
	if len(args) == 0 {
		return CLIName
	}
	return NormalizeCLIName(filepath.Base(args[0]))
}

func NormalizeCLIName(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	trimmed = strings.TrimSuffix(trimmed, ".exe")
	if IsCLICommandToken(trimmed) {
		return trimmed
	}
	return CLIName
}

func IsCLICommandToken(token string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(token))
	if trimmed == "" {
		return false
	}
	if trimmed == CLIName {
		return true
	}
	for _, alias := range InputAliases {
		if trimmed == alias {
			return true
		}
	}
	return false
}
