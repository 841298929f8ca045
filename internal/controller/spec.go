package controller

import (
	"os/exec"
	"strings"
	"time"
)

// Default grace periods and pauses, applied when the spec leaves them zero.
const (
	DefaultStartGrace   = 2 * time.Second
	DefaultStopGrace    = 3 * time.Second
	DefaultRestartPause = 1 * time.Second
)

// Spec describes the one service a controller supervises.
type Spec struct {
	Name    string   `json:"name" mapstructure:"name"`
	Command string   `json:"command" mapstructure:"command"`
	WorkDir string   `json:"work_dir" mapstructure:"work_dir"`
	Env     []string `json:"env" mapstructure:"env"` // extra KEY=VALUE entries appended to the inherited environment

	LogDir string `json:"log_dir" mapstructure:"log_dir"` // dated child logs land here

	StartGrace   time.Duration `json:"start_grace" mapstructure:"start_grace"`     // child must survive this long after spawn
	StopGrace    time.Duration `json:"stop_grace" mapstructure:"stop_grace"`       // SIGTERM wait before SIGKILL
	RestartPause time.Duration `json:"restart_pause" mapstructure:"restart_pause"` // pause between stop and start on restart
}

func (s *Spec) startGrace() time.Duration {
	if s.StartGrace > 0 {
		return s.StartGrace
	}
	return DefaultStartGrace
}

func (s *Spec) stopGrace() time.Duration {
	if s.StopGrace > 0 {
		return s.StopGrace
	}
	return DefaultStopGrace
}

func (s *Spec) restartPause() time.Duration {
	if s.RestartPause > 0 {
		return s.RestartPause
	}
	return DefaultRestartPause
}

// BuildCommand constructs an *exec.Cmd for the spec's command string.
// It avoids invoking a shell when not necessary, honors an explicit
// "sh -c ..." prefix without double-wrapping, and falls back to
// /bin/sh -c when shell metacharacters are present.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/false")
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes and returns the
// script after "-c", stripping one pair of surrounding quotes so the shell
// sees the actual script.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
