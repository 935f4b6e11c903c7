//go:build windows

package discover

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/reconware/sweeper/internal/model"
)

// uninstall keys hold an InstallLocation hint for most installers,
// both native and 32-bit-on-64 views are checked.
var uninstallKeys = []struct {
	root registry.Key
	path string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
}

func registryLookup(name, exe string) (string, error) {
	needle := strings.ToLower(name)
	for _, uk := range uninstallKeys {
		k, err := registry.OpenKey(uk.root, uk.path, registry.ENUMERATE_SUB_KEYS|registry.READ)
		if err != nil {
			continue
		}
		subs, err := k.ReadSubKeyNames(-1)
		if err != nil {
			_ = k.Close()
			continue
		}
		for _, sub := range subs {
			app, err := registry.OpenKey(uk.root, uk.path+`\`+sub, registry.READ)
			if err != nil {
				continue
			}
			display, _, _ := app.GetStringValue("DisplayName")
			location, _, _ := app.GetStringValue("InstallLocation")
			_ = app.Close()
			if location == "" || !strings.Contains(strings.ToLower(display), needle) {
				continue
			}
			if path, err := probe(filepath.Join(location, exe)); err == nil {
				_ = k.Close()
				return path, nil
			}
		}
		_ = k.Close()
	}
	return "", fmt.Errorf("%q: %w", name, model.ErrToolNotFound)
}
