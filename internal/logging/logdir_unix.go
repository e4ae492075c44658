//go:build !windows

package logging

import (
	"io/fs"
	"os"
	"syscall"
)

func shareable(info fs.FileInfo) bool {
	return info.Mode().Perm()&0o077 != 0
}

func ownedBySelf(info fs.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	return ok && stat.Uid == uint32(os.Getuid())
}
