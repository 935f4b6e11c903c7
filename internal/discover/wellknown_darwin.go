//go:build darwin

package discover

import (
	"io/fs"
	"path/filepath"
)

func wellKnownDirs(name string) []string {
	return []string{
		// homebrew on apple silicon, then intel, then macports
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/opt/local/bin",
		"/usr/bin",
		"/usr/sbin",
		"/opt/" + name,
		filepath.Join("/opt", name, "bin"),
		filepath.Join("/Applications", name+".app", "Contents", "MacOS"),
	}
}

func exeName(name string) string { return name }

func isExecutable(info fs.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
