package version

import (
	"fmt"
	"runtime"

	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/identity"
)

// Register registers version handler.
func Register(reg *root.Registry) {
	reg.Register("version", runVersion)
}

func runVersion(ctx root.CommandContext) error {
	_, err := fmt.Fprintf(ctx.Out, "%s %s (%s, %s/%s)\n",
		identity.NormalizeCLIName(ctx.Deps.AppName), ctx.Deps.Version,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
