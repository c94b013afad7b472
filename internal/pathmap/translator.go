// Package pathmap rewrites paths between the build host's POSIX namespace
// and the executor's drive-letter namespace using an ordered rule table.
package pathmap

import (
	"go.uber.org/zap"
)

type direction struct {
	from, to Convention
}

// Translator evaluates rules per direction, first match wins. It is pure
// string manipulation and safe for concurrent use.
type Translator struct {
	env    Env
	rules  map[direction][]Rule
	logger *zap.Logger
}

// New compiles specs into a translator. Specs for a direction replace the
// built-in table for that direction only.
func New(env Env, specs []RuleSpec, logger *zap.Logger) (*Translator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	builtin, err := compileAll(DefaultRules(), env)
	if err != nil {
		return nil, err
	}
	custom, err := compileAll(specs, env)
	if err != nil {
		return nil, err
	}

	rules := make(map[direction][]Rule)
	for _, r := range builtin {
		d := direction{r.From, r.To}
		rules[d] = append(rules[d], r)
	}
	overridden := make(map[direction]bool)
	for _, r := range custom {
		d := direction{r.From, r.To}
		if !overridden[d] {
			rules[d] = nil
			overridden[d] = true
		}
		rules[d] = append(rules[d], r)
	}

	return &Translator{
		env:    env,
		rules:  rules,
		logger: logger.With(zap.String("component", "pathmap")),
	}, nil
}

// NewDefault returns a translator using only the built-in rules.
func NewDefault(env Env, logger *zap.Logger) (*Translator, error) {
	return New(env, nil, logger)
}

func compileAll(specs []RuleSpec, env Env) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := Compile(s, env)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Translate returns path rewritten from one convention to another.
func (t *Translator) Translate(path string, from, to Convention) string {
	out, _ := t.TranslateRule(path, from, to)
	return out
}

// TranslateRule is Translate that also reports the name of the rule that
// fired. Identity translations report an empty rule name.
func (t *Translator) TranslateRule(path string, from, to Convention) (string, string) {
	if from == to {
		return path, ""
	}

	log := t.logger.With(
		zap.String("path", path),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)

	for _, r := range t.rules[direction{from, to}] {
		rendered, ok, err := r.apply(path, t.env)
		if !ok {
			continue
		}
		if err != nil {
			log.Warn("translation rule failed to render", zap.String("rule", r.Name), zap.Error(err))
			continue
		}
		out := normalize(rendered, to)
		if r.Fallback {
			log.Info("no specific translation rule matched, using fallback",
				zap.String("rule", r.Name), zap.String("result", out))
		} else {
			log.Debug("translation rule matched", zap.String("rule", r.Name), zap.String("result", out))
		}
		return out, r.Name
	}

	out := normalize(path, to)
	log.Info("no translation rule matched, substituting separators", zap.String("result", out))
	return out, ""
}

// Rules returns the active table for a direction in precedence order.
func (t *Translator) Rules(from, to Convention) []Rule {
	return append([]Rule(nil), t.rules[direction{from, to}]...)
}
