// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns child processes in their own process group so
// cancellation can reap the whole tree, not just the direct child.
package procgroup

import (
	"os/exec"
	"time"
)

// Set configures the command to start in a new process group. Must be
// called before cmd.Start for KillGroup to work.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup terminates the process group rooted at pid: SIGTERM, a grace
// period, then SIGKILL. No-op if the group is already gone.
func KillGroup(pid int, grace time.Duration) {
	killGroup(pid, grace)
}
