package config

import "time"

// PollInterval returns the sentinel poll interval.
func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Timeout returns the hard upper bound on waiting for a sentinel.
func (c MonitorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DialTimeout returns the SSH dial timeout, zero meaning no timeout.
func (c RemoteConfig) DialTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
