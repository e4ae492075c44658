package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"

	"github.com/regenrek/termflow/internal/session"
)

const inputBufferSize = 4096

// inputTarget is the part of a session the terminal bridge drives.
type inputTarget interface {
	SendInput([]byte) error
	Resize(cols, rows int) error
}

// attachTerminal puts f in raw mode, forwards its bytes to the session and
// follows host resizes. The returned stop restores the terminal.
func attachTerminal(ctx context.Context, f *os.File, sess *session.Session) (func(), error) {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("run: raw mode: %w", err)
	}
	restore := func() { _ = term.Restore(fd, state) }

	fwd, err := startForwarder(ctx, f, sess)
	if err != nil {
		restore()
		return nil, err
	}
	stopResize := watchResize(ctx, func() {
		if w, h, err := term.GetSize(fd); err == nil {
			if err := sess.Resize(w, h); err != nil {
				slog.Debug("run: resize failed", slog.Any("err", err))
			}
		}
	})
	return func() {
		stopResize()
		fwd.Stop()
		restore()
	}, nil
}

type forwarder struct {
	cr     cancelreader.CancelReader
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// startForwarder copies r into target until r ends, ctx ends, the target
// closes or Stop is called.
func startForwarder(ctx context.Context, r io.Reader, target inputTarget) (*forwarder, error) {
	cr, err := cancelreader.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("run: stdin reader: %w", err)
	}
	fwdCtx, cancel := context.WithCancel(ctx)
	f := &forwarder{cr: cr, cancel: cancel, done: make(chan struct{})}
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		<-fwdCtx.Done()
		cr.Cancel()
	}()
	go func() {
		defer f.wg.Done()
		defer close(f.done)
		defer cancel()
		buf := make([]byte, inputBufferSize)
		for {
			n, err := cr.Read(buf)
			if n > 0 {
				if sendErr := target.SendInput(buf[:n]); sendErr != nil {
					var closed *session.ClosedError
					if !errors.As(sendErr, &closed) {
						slog.Warn("run: forward input failed", slog.Any("err", sendErr))
					}
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, cancelreader.ErrCanceled) {
					slog.Warn("run: read stdin failed", slog.Any("err", err))
				}
				return
			}
		}
	}()
	return f, nil
}

func (f *forwarder) Stop() {
	if f == nil {
		return
	}
	f.cancel()
	f.wg.Wait()
	_ = f.cr.Close()
}
