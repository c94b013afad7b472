package config

import (
	"fmt"
	"path"
	"strings"
)

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	// Resolver
	if c.Resolver.MaxDepth < 0 {
		errs = append(errs, "resolver.max_depth must be >= 0")
	}
	for _, name := range c.Resolver.ExcludedNames {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "resolver.excluded_names must not contain empty names")
			break
		}
	}

	// Translator
	if strings.TrimSpace(c.Translator.ShareRoot) == "" {
		errs = append(errs, "translator.share_root must not be empty")
	}
	switch c.Translator.ExecutorConvention {
	case "posix", "windows":
	default:
		errs = append(errs, "translator.executor_convention must be \"posix\" or \"windows\"")
	}
	if len(c.Translator.HomePrefixes) == 0 {
		errs = append(errs, "translator.home_prefixes must list at least one prefix")
	}

	// Monitor
	if strings.TrimSpace(c.Monitor.Marker) == "" {
		errs = append(errs, "monitor.marker must not be empty")
	}
	if strings.ContainsAny(c.Monitor.Marker, "\r\n") {
		errs = append(errs, "monitor.marker must be a single line")
	}
	if c.Monitor.PollIntervalMs < 1 {
		errs = append(errs, "monitor.poll_interval_ms must be >= 1")
	}
	if c.Monitor.TimeoutMs < c.Monitor.PollIntervalMs {
		errs = append(errs, "monitor.timeout_ms must be >= monitor.poll_interval_ms")
	}
	if dir := c.Monitor.SentinelDir; dir != "" {
		if !path.IsAbs(dir) {
			errs = append(errs, "monitor.sentinel_dir must be an absolute path")
		} else if !c.sentinelDirShared() {
			errs = append(errs, "monitor.sentinel_dir must be under the home directory or the mount bridge when the executor is windows")
		}
	}

	// Launcher
	if strings.TrimSpace(c.Launcher.Shell) == "" {
		errs = append(errs, "launcher.shell must not be empty")
	}
	if strings.TrimSpace(c.Launcher.ScriptPrefix) == "" {
		errs = append(errs, "launcher.script_prefix must not be empty")
	}
	if strings.TrimSpace(c.Launcher.Executor) == "" {
		errs = append(errs, "launcher.executor must not be empty")
	}
	if c.Launcher.MaxOutputBytes < 1 {
		errs = append(errs, "launcher.max_output_bytes must be >= 1")
	}

	// Remote
	if c.Remote.Enabled {
		if strings.TrimSpace(c.Remote.Host) == "" {
			errs = append(errs, "remote.host is required when remote.enabled is set")
		}
		if strings.TrimSpace(c.Remote.User) == "" {
			errs = append(errs, "remote.user is required when remote.enabled is set")
		}
		if strings.TrimSpace(c.Remote.KeyPath) == "" {
			errs = append(errs, "remote.key_path is required when remote.enabled is set")
		}
	}
	if c.Remote.TimeoutMs < 0 {
		errs = append(errs, "remote.timeout_ms must be >= 0")
	}

	// Cache
	if strings.TrimSpace(c.Cache.SettingsFile) == "" {
		errs = append(errs, "cache.settings_file must not be empty")
	}
	if strings.TrimSpace(c.Cache.Section) == "" {
		errs = append(errs, "cache.section must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

// sentinelDirShared reports whether the built-in windows ladder maps the
// sentinel directory to a path that maps back to it. Only the home share and
// the mount bridge do; other absolute paths land under the share root.
func (c *Config) sentinelDirShared() bool {
	if c.Translator.ExecutorConvention != "windows" || c.Translator.RulesFile != "" {
		return true
	}
	dir := path.Clean(c.Monitor.SentinelDir)

	if mount := strings.TrimRight(c.Translator.MountBridgePrefix, "/"); mount != "" && strings.HasPrefix(dir, mount+"/") {
		return true
	}
	if home := strings.TrimRight(c.Translator.HomeDir, "/"); home != "" {
		return dir == home || strings.HasPrefix(dir, home+"/")
	}
	for _, prefix := range c.Translator.HomePrefixes {
		prefix = strings.TrimRight(prefix, "/")
		if user, ok := strings.CutPrefix(dir, prefix+"/"); ok && user != "" {
			return true
		}
	}
	return false
}
