// Package surface provides the display surfaces a pipeline renders into.
package surface

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	headlessterm "github.com/danielgatis/go-headless-term"

	"github.com/regenrek/termflow/internal/limits"
)

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("surface: closed")

// Options configures a Headless surface.
type Options struct {
	Cols int
	Rows int
	// Capacity is the initial scrollback line limit. Zero uses the buffer default.
	Capacity int
	// Responses receives terminal replies (cursor reports, device attributes).
	// Nil discards them.
	Responses io.Writer
}

// Headless is an in-memory terminal emulator with bounded scrollback.
type Headless struct {
	mu     sync.Mutex // serializes Write/Resize against the emulator
	term   *headlessterm.Terminal
	closed atomic.Bool
}

func NewHeadless(opts Options) *Headless {
	cols, rows := limits.Clamp(opts.Cols, opts.Rows)
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = limits.BufferMaxLinesDefault
	}
	termOpts := []headlessterm.Option{
		headlessterm.WithSize(rows, cols),
		headlessterm.WithScrollback(headlessterm.NewMemoryScrollback(capacity)),
	}
	if opts.Responses != nil {
		termOpts = append(termOpts, headlessterm.WithResponse(opts.Responses))
	}
	return &Headless{term: headlessterm.New(termOpts...)}
}

// Accept feeds raw PTY output into the emulator.
func (h *Headless) Accept(chunk []byte) error {
	if h == nil {
		return ErrClosed
	}
	if h.closed.Load() {
		return ErrClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.term.Write(chunk); err != nil {
		return fmt.Errorf("surface: write: %w", err)
	}
	return nil
}

func (h *Headless) BacklogLen() int { return h.term.ScrollbackLen() }

// SetCapacity changes the scrollback limit; excess lines are dropped oldest first.
func (h *Headless) SetCapacity(lines int) {
	if lines <= 0 {
		return
	}
	h.term.SetMaxScrollback(lines)
}

func (h *Headless) DiscardScrollback() { h.term.ClearScrollback() }

func (h *Headless) Capacity() int { return h.term.MaxScrollback() }

func (h *Headless) Cols() int { return h.term.Cols() }

func (h *Headless) Rows() int { return h.term.Rows() }

// Resize clamps the dimensions and resizes the emulator.
func (h *Headless) Resize(cols, rows int) {
	cols, rows = limits.Clamp(cols, rows)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.term.Resize(rows, cols)
}

// Screen returns the visible screen as text, trailing blank lines omitted.
func (h *Headless) Screen() string { return h.term.String() }

func (h *Headless) Title() string { return h.term.Title() }

// Close makes later Accept calls fail. Reads keep working.
func (h *Headless) Close() error {
	if h == nil {
		return nil
	}
	h.closed.Store(true)
	return nil
}
