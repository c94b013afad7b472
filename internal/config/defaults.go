package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Resolver   ResolverConfig   `json:"resolver"`
	Translator TranslatorConfig `json:"translator"`
	Monitor    MonitorConfig    `json:"monitor"`
	Launcher   LauncherConfig   `json:"launcher"`
	Remote     RemoteConfig     `json:"remote"`
	Cache      CacheConfig      `json:"cache"`
	Logging    LoggingConfig    `json:"logging"`
}

type ResolverConfig struct {
	MaxDepth      int      `json:"max_depth"`      // Default: 3
	ExcludedNames []string `json:"excluded_names"` // Default: VCS metadata and Yocto download/state caches
}

type TranslatorConfig struct {
	ShareRoot          string   `json:"share_root"`          // Default: "Z:"
	HomePrefixes       []string `json:"home_prefixes"`       // Default: ["/home"]
	ProjectKeywords    []string `json:"project_keywords"`    // Default: build tree names seen under home
	MountBridgePrefix  string   `json:"mount_bridge_prefix"` // Default: "/mnt"
	RulesFile          string   `json:"rules_file"`          // Default: "" (built-in table)
	ExecutorConvention string   `json:"executor_convention"` // Default: "windows"
	HomeDir            string   `json:"home_dir"`            // Default: "" (reverse table target)
}

type MonitorConfig struct {
	Marker         string `json:"marker"`           // Default: "FWDN_COMPLETED"
	PollIntervalMs int    `json:"poll_interval_ms"` // Default: 1000
	TimeoutMs      int    `json:"timeout_ms"`       // Default: 600000 (10 minutes)
	SentinelDir    string `json:"sentinel_dir"`     // Default: "" (~/.axon)
	Watch          bool   `json:"watch"`            // Default: false
}

type LauncherConfig struct {
	Shell               string   `json:"shell"`                 // Default: "/bin/sh"
	ScriptPrefix        string   `json:"script_prefix"`         // Default: ".axon-task-"
	StageHiddenCommands bool     `json:"stage_hidden_commands"` // Default: true
	Executor            string   `json:"executor"`              // Default: "cmd.exe"
	ExecutorArgs        []string `json:"executor_args"`         // Default: ["/c"]
	MaxOutputBytes      int64    `json:"max_output_bytes"`      // Default: 1MB
}

type RemoteConfig struct {
	Enabled                  bool   `json:"enabled"`
	Host                     string `json:"host"`
	Port                     string `json:"port"` // Default: "22"
	User                     string `json:"user"`
	KeyPath                  string `json:"key_path"`
	KnownHostsPath           string `json:"known_hosts_path"`
	InsecureSkipHostKeyCheck bool   `json:"insecure_skip_host_key_check"`
	TimeoutMs                int    `json:"timeout_ms"` // Default: 10000
}

type CacheConfig struct {
	SettingsFile string `json:"settings_file"` // Default: ".vscode/settings.json", relative to the workspace
	Section      string `json:"section"`       // Default: "axon.resolvedPaths"
}

type LoggingConfig struct {
	Level       string `json:"level"`       // Default: "info"
	Development bool   `json:"development"` // Default: false
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MaxDepth:      3,
			ExcludedNames: []string{".git", ".repo", "node_modules", "downloads", "sstate-cache", "cache"},
		},
		Translator: TranslatorConfig{
			ShareRoot:          "Z:",
			HomePrefixes:       []string{"/home"},
			ProjectKeywords:    []string{"autotest_cs", "build-axon", "work", "project", "src"},
			MountBridgePrefix:  "/mnt",
			ExecutorConvention: "windows",
		},
		Monitor: MonitorConfig{
			Marker:         "FWDN_COMPLETED",
			PollIntervalMs: 1000,
			TimeoutMs:      600000,
		},
		Launcher: LauncherConfig{
			Shell:               "/bin/sh",
			ScriptPrefix:        ".axon-task-",
			StageHiddenCommands: true,
			Executor:            "cmd.exe",
			ExecutorArgs:        []string{"/c"},
			MaxOutputBytes:      1024 * 1024,
		},
		Remote: RemoteConfig{
			Port:      "22",
			TimeoutMs: 10000,
		},
		Cache: CacheConfig{
			SettingsFile: ".vscode/settings.json",
			Section:      "axon.resolvedPaths",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
