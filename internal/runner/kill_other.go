//go:build !unix

package runner

import "os/exec"

// setSysProcAttr keeps the default context kill where process groups are
// not available. On windows exec.CommandContext terminates the direct
// child, which is what the job object APIs would need to improve on.
func setSysProcAttr(_ *exec.Cmd) {}
