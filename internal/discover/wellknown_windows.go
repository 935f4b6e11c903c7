//go:build windows

package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func wellKnownDirs(name string) []string {
	var dirs []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "ProgramW6432"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		dirs = append(dirs,
			filepath.Join(root, name),
			filepath.Join(root, strings.Title(name)), //nolint:staticcheck // vendor dirs are capitalized by installers
		)
	}
	if local := os.Getenv("LocalAppData"); local != "" {
		dirs = append(dirs, filepath.Join(local, "Programs", name))
	}
	return dirs
}

func exeName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name
	}
	return name + ".exe"
}

func isExecutable(info fs.FileInfo) bool {
	// windows has no execute bit, existence of the .exe is enough
	return info.Mode().IsRegular()
}
