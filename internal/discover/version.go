package discover

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 3 * time.Second

// versionFlags are tried in order until one produces output.
var versionFlags = [][]string{
	{"--version"},
	{"-V"},
	{"-version"},
	{"version"},
}

// DetectVersion runs the binary with common version flags and extracts the
// first version-looking token. Returns "unknown" when nothing matches, a
// missing version never fails a resolution.
func DetectVersion(ctx context.Context, path string) string {
	for _, flags := range versionFlags {
		out, ok := tryCommand(ctx, path, flags...)
		if !ok {
			continue
		}
		if v := firstVersionToken(out); v != "" {
			return v
		}
	}
	return "unknown"
}

func tryCommand(ctx context.Context, path string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		// some tools print the version and exit non-zero, or print to stderr
		if s := strings.TrimSpace(out.String()); s != "" {
			return s, true
		}
		if s := strings.TrimSpace(errb.String()); s != "" {
			return s, true
		}
		return "", false
	}
	if s := strings.TrimSpace(out.String()); s != "" {
		return s, true
	}
	return strings.TrimSpace(errb.String()), true
}

func firstVersionToken(s string) string {
	for line := range strings.Lines(s) {
		for _, tok := range strings.Fields(line) {
			if looksLikeVersion(tok) {
				return strings.TrimPrefix(strings.TrimSuffix(tok, ","), "v")
			}
		}
	}
	return ""
}

// looksLikeVersion accepts tokens like 7.95, v1.2.3 or 7.94SVN.
func looksLikeVersion(s string) bool {
	s = strings.TrimPrefix(s, "v")
	s = strings.TrimSuffix(s, ",")
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	dots := strings.Count(s, ".")
	return dots >= 1 && dots <= 3
}
