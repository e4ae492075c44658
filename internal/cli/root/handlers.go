package root

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/termflow/internal/cli/spec"
)

// CommandContext is what a handler sees for one invocation.
type CommandContext struct {
	Context context.Context
	// Args holds the positional values in declaration order.
	Args   []string
	Spec   spec.Command
	Cmd    *cli.Command
	Deps   Dependencies
	JSON   bool
	Yes    bool
	Out    io.Writer
	ErrOut io.Writer
	Stdin  io.Reader
}

// Handler executes one leaf command.
type Handler func(ctx CommandContext) error

// Registry maps command ids from commands.yaml to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds handler to id. Empty ids and nil handlers are ignored.
func (r *Registry) Register(id string, handler Handler) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" || handler == nil {
		return
	}
	r.handlers[id] = handler
}

func (r *Registry) HandlerFor(id string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[id]
	return h, ok
}

// EnsureHandlers reports the first leaf command without a handler.
func (r *Registry) EnsureHandlers(specDoc *spec.Spec) error {
	if r == nil || specDoc == nil {
		return nil
	}
	for path, cmd := range specDoc.Paths() {
		if len(cmd.Subcommands) > 0 {
			continue
		}
		if _, ok := r.handlers[cmd.ID]; !ok {
			return &MissingHandlerError{ID: cmd.ID, Path: path}
		}
	}
	return nil
}

// MissingHandlerError means commands.yaml declares a command that no
// package registered.
type MissingHandlerError struct {
	ID   string
	Path string
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("cli: %s: command %q (id %s) has no registered handler", spec.File, e.Path, e.ID)
}
