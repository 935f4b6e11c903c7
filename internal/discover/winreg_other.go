//go:build !windows

package discover

import (
	"fmt"

	"github.com/reconware/sweeper/internal/model"
)

// registryLookup is a windows-only strategy, everywhere else it is a miss.
func registryLookup(name, _ string) (string, error) {
	return "", fmt.Errorf("%q: %w", name, model.ErrToolNotFound)
}
