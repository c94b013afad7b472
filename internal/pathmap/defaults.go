package pathmap

import "github.com/tccjustin/axon/internal/config"

// DefaultRules returns the built-in ladders for both directions. Order is
// precedence: the project-keyword rule must precede the generic home rule,
// and both must precede the plain absolute rule.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{
			Name:   "home-project",
			From:   "posix",
			To:     "windows",
			Match:  `^${home}/[^/]+/(?P<rest>${keywords}(?:/.*)?)$`,
			Output: `{{.Share}}\{{.rest}}`,
		},
		{
			Name:   "home-generic",
			From:   "posix",
			To:     "windows",
			Match:  `^${home}/[^/]+/(?P<rest>.+)$`,
			Output: `{{.Share}}\{{.rest}}`,
		},
		{
			Name:   "mount-bridge",
			From:   "posix",
			To:     "windows",
			Match:  `^${mount}/(?P<drive>[A-Za-z])(?:/(?P<rest>.*))?$`,
			Output: `{{upper .drive}}:\{{.rest}}`,
		},
		{
			Name:   "absolute",
			From:   "posix",
			To:     "windows",
			Match:  `^/+(?P<rest>.+)$`,
			Output: `{{.Share}}\{{.rest}}`,
		},
		{
			Name:     "separators",
			From:     "posix",
			To:       "windows",
			Match:    `(?s)^.*$`,
			Extract:  string(ExtractWhole),
			Output:   `{{.path}}`,
			Fallback: true,
		},
		{
			Name:   "share-root",
			From:   "windows",
			To:     "posix",
			Match:  `(?i)^${share}(?:[\\/](?P<rest>.*))?$`,
			Output: `{{.Home}}/{{.rest}}`,
		},
		{
			Name:   "drive-letter",
			From:   "windows",
			To:     "posix",
			Match:  `^(?P<drive>[A-Za-z]):(?:[\\/](?P<rest>.*))?$`,
			Output: `${mount}/{{lower .drive}}/{{.rest}}`,
		},
		{
			Name:     "separators",
			From:     "windows",
			To:       "posix",
			Match:    `(?s)^.*$`,
			Extract:  string(ExtractWhole),
			Output:   `{{.path}}`,
			Fallback: true,
		},
	}
}

// EnvFromConfig builds the substitution environment from the translator
// config section.
func EnvFromConfig(cfg config.TranslatorConfig) Env {
	return Env{
		Share:        cfg.ShareRoot,
		Home:         cfg.HomeDir,
		HomePrefixes: append([]string(nil), cfg.HomePrefixes...),
		Keywords:     append([]string(nil), cfg.ProjectKeywords...),
		MountPrefix:  cfg.MountBridgePrefix,
	}
}
