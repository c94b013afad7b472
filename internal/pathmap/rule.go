package pathmap

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Extraction selects what a matched rule feeds into its output template.
type Extraction string

const (
	// ExtractGroups exposes the pattern's named groups to the template.
	ExtractGroups Extraction = "groups"
	// ExtractWhole exposes the entire input path as .path.
	ExtractWhole Extraction = "whole"
)

// RuleSpec is the declarative, serialisable form of a translation rule.
type RuleSpec struct {
	Name     string `yaml:"name" toml:"name"`
	From     string `yaml:"from" toml:"from"`
	To       string `yaml:"to" toml:"to"`
	Match    string `yaml:"match" toml:"match"`
	Extract  string `yaml:"extract,omitempty" toml:"extract,omitempty"`
	Output   string `yaml:"output" toml:"output"`
	Fallback bool   `yaml:"fallback,omitempty" toml:"fallback,omitempty"`
}

// Rule is a compiled RuleSpec.
type Rule struct {
	Name     string
	From     Convention
	To       Convention
	Pattern  *regexp.Regexp
	Extract  Extraction
	Template *template.Template
	Fallback bool
	Source   RuleSpec
}

// Env holds the site values substituted into rule patterns and templates.
type Env struct {
	Share        string
	Home         string
	HomePrefixes []string
	Keywords     []string
	MountPrefix  string
}

// matchNothing never matches; RE2 has no (?!) so an empty class is used.
const matchNothing = `[^\s\S]`

var placeholder = regexp.MustCompile(`\$\{([a-z]+)\}`)

// Compile expands placeholders and compiles the pattern and template of spec.
func Compile(spec RuleSpec, env Env) (Rule, error) {
	name := spec.Name
	if name == "" {
		return Rule{}, &RuleError{Rule: "(unnamed)", Field: "name", Cause: fmt.Errorf("empty")}
	}

	from, err := ParseConvention(spec.From)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "from", Cause: err}
	}
	to, err := ParseConvention(spec.To)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "to", Cause: err}
	}

	extract := Extraction(strings.ToLower(strings.TrimSpace(spec.Extract)))
	switch extract {
	case "":
		extract = ExtractGroups
	case ExtractGroups, ExtractWhole:
	default:
		return Rule{}, &RuleError{Rule: name, Field: "extract", Cause: fmt.Errorf("%w: %q", ErrUnknownExtraction, spec.Extract)}
	}

	expanded, err := expandPattern(spec.Match, env)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "match", Cause: err}
	}
	pattern, err := regexp.Compile(expanded)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "match", Cause: err}
	}

	output, err := expandOutput(spec.Output, env)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "output", Cause: err}
	}
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(output)
	if err != nil {
		return Rule{}, &RuleError{Rule: name, Field: "output", Cause: err}
	}

	return Rule{
		Name:     name,
		From:     from,
		To:       to,
		Pattern:  pattern,
		Extract:  extract,
		Template: tmpl,
		Fallback: spec.Fallback,
		Source:   spec,
	}, nil
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// apply renders the rule for path, reporting false when the pattern does not match.
func (r Rule) apply(path string, env Env) (string, bool, error) {
	m := r.Pattern.FindStringSubmatch(path)
	if m == nil {
		return "", false, nil
	}

	data := map[string]string{
		"Share": env.Share,
		"Home":  env.Home,
		"Mount": env.MountPrefix,
	}
	switch r.Extract {
	case ExtractWhole:
		data["path"] = path
	default:
		for i, group := range r.Pattern.SubexpNames() {
			if group != "" {
				data[group] = m[i]
			}
		}
	}

	var b strings.Builder
	if err := r.Template.Execute(&b, data); err != nil {
		return "", true, err
	}
	return b.String(), true, nil
}

func expandPattern(match string, env Env) (string, error) {
	return expand(match, func(key string) (string, bool) {
		switch key {
		case "home":
			return alternation(trimSlashes(env.HomePrefixes)), true
		case "keywords":
			return alternation(env.Keywords), true
		case "mount":
			return regexp.QuoteMeta(strings.TrimRight(env.MountPrefix, "/")), true
		case "share":
			return regexp.QuoteMeta(env.Share), true
		}
		return "", false
	})
}

func expandOutput(output string, env Env) (string, error) {
	return expand(output, func(key string) (string, bool) {
		switch key {
		case "home":
			return env.Home, true
		case "mount":
			return strings.TrimRight(env.MountPrefix, "/"), true
		case "share":
			return env.Share, true
		}
		return "", false
	})
}

func expand(s string, lookup func(string) (string, bool)) (string, error) {
	var unknown []string
	out := placeholder.ReplaceAllStringFunc(s, func(tok string) string {
		key := placeholder.FindStringSubmatch(tok)[1]
		v, ok := lookup(key)
		if !ok {
			unknown = append(unknown, tok)
			return tok
		}
		return v
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown placeholder %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

func alternation(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	if len(quoted) == 0 {
		return matchNothing
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

func trimSlashes(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimRight(v, "/")
	}
	return out
}
