//go:build unix && !darwin

package discover

import (
	"io/fs"
	"path/filepath"
)

func wellKnownDirs(name string) []string {
	return []string{
		"/usr/bin",
		"/usr/local/bin",
		"/usr/sbin",
		"/usr/local/sbin",
		"/opt/" + name,
		filepath.Join("/opt", name, "bin"),
		"/snap/bin",
	}
}

func exeName(name string) string { return name }

func isExecutable(info fs.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
