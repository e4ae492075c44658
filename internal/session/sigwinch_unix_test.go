//go:build unix

package session

import (
	"errors"
	"os"
	"syscall"
	"testing"
)

func testResetKill() func() {
	prev := killProcessGroup
	return func() { killProcessGroup = prev }
}

func testResetIOCTL() func() {
	prev := ioctlGetPGRP
	return func() { ioctlGetPGRP = prev }
}

type stubPTYControl struct {
	fd  uintptr
	err error
}

func (s stubPTYControl) Control(fn func(fd uintptr)) error {
	if s.err != nil {
		return s.err
	}
	fn(s.fd)
	return nil
}

type stubPTYSlave struct {
	stubPTYControl
	slave *os.File
}

func (s stubPTYSlave) Slave() *os.File { return s.slave }

func TestSignalWINCHChoosesForegroundPGRP(t *testing.T) {
	t.Cleanup(testResetKill())
	t.Cleanup(testResetIOCTL())

	var gotPID, calls int
	var gotSig syscall.Signal
	killProcessGroup = func(pid int, sig syscall.Signal) error {
		calls++
		gotPID = pid
		gotSig = sig
		return nil
	}
	ioctlGetPGRP = func(fd int) (int, error) {
		if fd != 0 {
			t.Fatalf("fd=%d", fd)
		}
		return 777, nil
	}

	signalWINCHForPTY(123, stubPTYSlave{stubPTYControl: stubPTYControl{fd: 12}, slave: os.NewFile(0, "stdin")})
	if calls != 1 || gotPID != -777 || gotSig != syscall.SIGWINCH {
		t.Fatalf("calls=%d pid=%d sig=%v", calls, gotPID, gotSig)
	}
}

func TestSignalWINCHFallsBackToPID(t *testing.T) {
	t.Cleanup(testResetKill())
	t.Cleanup(testResetIOCTL())

	var gotPID, calls int
	killProcessGroup = func(pid int, sig syscall.Signal) error {
		calls++
		gotPID = pid
		return nil
	}
	ioctlGetPGRP = func(fd int) (int, error) {
		return 0, errors.New("nope")
	}

	signalWINCHForPTY(123, stubPTYSlave{stubPTYControl: stubPTYControl{fd: 12}, slave: os.NewFile(0, "stdin")})
	if calls != 1 || gotPID != -123 {
		t.Fatalf("calls=%d pid=%d", calls, gotPID)
	}
}

func TestSignalWINCHSkipsInvalidPID(t *testing.T) {
	t.Cleanup(testResetKill())

	calls := 0
	killProcessGroup = func(pid int, sig syscall.Signal) error {
		calls++
		return nil
	}
	signalWINCHForPTY(0, nil)
	signalWINCHForPTY(-1, nil)
	if calls != 0 {
		t.Fatalf("calls=%d", calls)
	}
}

type stubPTYSlaveOnly struct {
	slave *os.File
}

func (s stubPTYSlaveOnly) Slave() *os.File { return s.slave }

func TestSetPTYSlaveWinsizeBestEffortCallsIOCTL(t *testing.T) {
	prev := ioctlSetWinsize
	t.Cleanup(func() { ioctlSetWinsize = prev })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	t.Cleanup(func() { _ = w.Close() })

	var gotFD, gotCols, gotRows, calls int
	ioctlSetWinsize = func(fd int, cols, rows int) error {
		calls++
		gotFD, gotCols, gotRows = fd, cols, rows
		return nil
	}

	setPTYSlaveWinsizeBestEffort(stubPTYSlaveOnly{slave: r}, 80, 24)
	if calls != 1 || gotFD != int(r.Fd()) || gotCols != 80 || gotRows != 24 {
		t.Fatalf("calls=%d fd=%d cols=%d rows=%d", calls, gotFD, gotCols, gotRows)
	}

	setPTYSlaveWinsizeBestEffort(stubPTYSlaveOnly{slave: r}, 0, 24)
	if calls != 1 {
		t.Fatalf("expected invalid size to be skipped, calls=%d", calls)
	}
}
