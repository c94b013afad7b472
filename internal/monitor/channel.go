package monitor

import (
	"strings"
	"time"

	"github.com/tccjustin/axon/internal/config"
)

// Channel is a sentinel file through which an out-of-band process reports
// completion. Path is on the launcher's side of any path translation.
type Channel struct {
	Path         string
	Expected     string
	PollInterval time.Duration
	Timeout      time.Duration
	CreatedAt    time.Time
}

// NewChannel creates a channel for path using the monitor config section.
func NewChannel(path string, cfg config.MonitorConfig, now time.Time) Channel {
	return Channel{
		Path:         path,
		Expected:     cfg.Marker,
		PollInterval: cfg.PollInterval(),
		Timeout:      cfg.Timeout(),
		CreatedAt:    now,
	}
}

// Deadline is the hard upper bound after which the channel times out.
func (c Channel) Deadline() time.Time {
	return c.CreatedAt.Add(c.Timeout)
}

// Matches reports whether content is exactly the marker line. One trailing
// line terminator is allowed since the marker is written as a line.
func (c Channel) Matches(content string) bool {
	content = strings.TrimSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\r")
	return content == c.Expected
}
