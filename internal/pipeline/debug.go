package pipeline

import (
	"os"
	"strings"
	"sync"
)

const debugEnv = "TERMFLOW_PIPELINE_DEBUG"

var (
	debugOnce sync.Once
	debugOn   bool
)

func debugFromEnv() bool {
	debugOnce.Do(func() {
		value := strings.TrimSpace(os.Getenv(debugEnv))
		if value == "" {
			debugOn = false
			return
		}
		switch strings.ToLower(value) {
		case "0", "false", "no", "off":
			debugOn = false
		default:
			debugOn = true
		}
	})
	return debugOn
}
