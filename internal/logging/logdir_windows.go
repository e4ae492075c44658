//go:build windows

package logging

import "io/fs"

// ACLs govern access on Windows; mode bits are not meaningful.
func shareable(fs.FileInfo) bool { return false }

func ownedBySelf(fs.FileInfo) bool { return false }
