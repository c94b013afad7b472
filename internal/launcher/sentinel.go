package launcher

import (
	"path/filepath"

	"github.com/tccjustin/axon/internal/pathmap"
)

func sentinelName(id string) string {
	return "axon-" + id + ".done"
}

// wrapDetached builds the argv handed to the detached starter. The user
// command runs first; the marker is written to sentinel whatever its exit
// status.
func (l *Launcher) wrapDetached(cmd Command, sentinel string) []string {
	var line string
	switch l.cfg.ExecutorConvention {
	case pathmap.WindowsDrive:
		line = windowsLine(cmd.Argv()) + " & echo " + l.cfg.Marker + `> "` + sentinel + `"`
	default:
		line = posixLine(cmd.Argv()) + "; echo " + l.cfg.Marker + " > " + posixQuote(sentinel)
	}

	argv := []string{l.cfg.Executor}
	argv = append(argv, l.cfg.ExecutorArgs...)
	return append(argv, line)
}

// sentinelPaths returns the launcher-side path polled by the monitor and the
// executor-side path the detached process writes to.
func (l *Launcher) sentinelPaths(id string) (local, remote string) {
	local = filepath.Join(l.cfg.SentinelDir, sentinelName(id))
	remote = l.translator.Translate(local, pathmap.Posix, l.cfg.ExecutorConvention)
	return local, remote
}
