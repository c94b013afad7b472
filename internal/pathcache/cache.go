// Package pathcache persists resolved paths inside an editor-style JSONC
// settings document. Only the configured section is ever rewritten; every
// other byte of the document, comments included, is left alone.
package pathcache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/service/fs"
)

// Entry is one cached resolution.
type Entry struct {
	Key                 string `mapstructure:"-"`
	ResolvedPath        string `mapstructure:"resolvedPath"`
	DiscoveredAtVersion string `mapstructure:"discoveredAtVersion"`
}

type FileSystem interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string, perm os.FileMode) error
	EnsureDirs(path string) error
}

// Versioner labels entries with the workspace revision they were found at.
type Versioner interface {
	Version() string
}

// Store is safe for concurrent use. Writers are serialized so that
// concurrent Puts never drop each other's entries.
type Store struct {
	mu sync.Mutex

	fs        FileSystem
	path      string
	section   string
	versioner Versioner
	logger    *zap.Logger
}

// New creates a store for section inside the document at settingsPath.
// A nil versioner leaves DiscoveredAtVersion as given.
func New(fs FileSystem, settingsPath, section string, versioner Versioner, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fs:        fs,
		path:      settingsPath,
		section:   section,
		versioner: versioner,
		logger:    logger.With(zap.String("component", "pathcache"), zap.String("settings", settingsPath)),
	}
}

// Path returns the settings document location.
func (s *Store) Path() string { return s.path }

// document is the raw settings text plus its comment-free twin. Both have
// identical length and offsets.
type document struct {
	raw    string
	json   string
	exists bool
}

func (s *Store) load() (document, error) {
	raw, err := s.fs.ReadFile(s.path)
	if err != nil {
		if fs.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, err
	}

	clean := string(jsonc.ToJSON([]byte(raw)))
	if strings.TrimSpace(clean) == "" {
		return document{raw: raw, json: clean, exists: true}, nil
	}
	if !gjson.Valid(clean) || !gjson.Parse(clean).IsObject() {
		return document{}, &DocumentError{Path: s.path}
	}
	return document{raw: raw, json: clean, exists: true}, nil
}

// Get returns the cached entry for key.
func (s *Store) Get(key string) (Entry, bool, error) {
	doc, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	v := gjson.Get(doc.json, escapePath(s.section)+"."+escapePath(key))
	if !v.Exists() {
		return Entry{}, false, nil
	}
	e, ok := s.decode(key, v)
	return e, ok, nil
}

// All returns every cached entry in the section.
func (s *Store) All() (map[string]Entry, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Entry)
	section := gjson.Get(doc.json, escapePath(s.section))
	if !section.IsObject() {
		return out, nil
	}
	section.ForEach(func(k, v gjson.Result) bool {
		if e, ok := s.decode(k.String(), v); ok {
			out[e.Key] = e
		}
		return true
	})
	return out, nil
}

// Keys returns the cached keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) decode(key string, v gjson.Result) (Entry, bool) {
	if !v.IsObject() {
		s.logger.Warn("ignoring malformed cache entry", zap.String("key", key))
		return Entry{}, false
	}
	var e Entry
	if err := mapstructure.Decode(v.Value(), &e); err != nil || e.ResolvedPath == "" {
		s.logger.Warn("ignoring malformed cache entry", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	e.Key = key
	return e, true
}

// Put stores e under its key, stamping the current version when e has none.
func (s *Store) Put(e Entry) error {
	if e.DiscoveredAtVersion == "" && s.versioner != nil {
		e.DiscoveredAtVersion = s.versioner.Version()
	}

	value, err := sjson.Set("", "resolvedPath", e.ResolvedPath)
	if err != nil {
		return err
	}
	if value, err = sjson.Set(value, "discoveredAtVersion", e.DiscoveredAtVersion); err != nil {
		return err
	}

	return s.update(func(section string) (string, error) {
		return sjson.SetRaw(section, escapePath(e.Key), value)
	})
}

// Delete removes key from the section. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	return s.update(func(section string) (string, error) {
		if !gjson.Get(section, escapePath(key)).Exists() {
			return section, nil
		}
		return sjson.Delete(section, escapePath(key))
	})
}

// update rewrites only the owned section of the document.
func (s *Store) update(edit func(section string) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	current := gjson.Get(doc.json, escapePath(s.section))
	sectionJSON := "{}"
	if current.IsObject() {
		sectionJSON = current.Raw
	}
	edited, err := edit(sectionJSON)
	if err != nil {
		return err
	}
	if edited == sectionJSON {
		return nil
	}

	var out string
	switch {
	case !doc.exists || strings.TrimSpace(doc.json) == "":
		out, err = sjson.SetRaw("{}", escapePath(s.section), edited)
		if err != nil {
			return err
		}
		out = string(pretty.PrettyOptions([]byte(out), &pretty.Options{Width: 80, Indent: "  ", SortKeys: false}))
	case current.Exists() && current.Index > 0:
		indent := lineIndent(doc.raw, current.Index)
		out = doc.raw[:current.Index] + formatSection(edited, indent) + doc.raw[current.Index+len(current.Raw):]
	default:
		out = insertMember(doc, s.section, formatSection(edited, "  "))
	}

	if err := s.fs.EnsureDirs(filepath.Dir(s.path)); err != nil {
		return err
	}
	if err := s.fs.WriteFile(s.path, out, 0o644); err != nil {
		return err
	}
	s.logger.Debug("settings section updated", zap.String("section", s.section))
	return nil
}

// formatSection pretty-prints a section value to sit after a key on a line
// indented by indent.
func formatSection(section, indent string) string {
	out := pretty.PrettyOptions([]byte(section), &pretty.Options{Width: 80, Prefix: indent, Indent: "  ", SortKeys: true})
	return strings.TrimSuffix(strings.TrimPrefix(string(out), indent), "\n")
}

func lineIndent(raw string, index int) string {
	start := strings.LastIndexByte(raw[:index], '\n') + 1
	line := raw[start:index]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// insertMember adds "section": value to the top-level object right after its
// last member, leaving trailing commas and comments in place.
func insertMember(doc document, section, value string) string {
	end := strings.LastIndexByte(doc.json, '}')
	body := strings.TrimRight(doc.json[:end], " \t\r\n")

	key := string(gjson.AppendJSONString(nil, section))
	member := key + ": " + value
	if strings.HasSuffix(body, "{") {
		return doc.raw[:len(body)] + "\n  " + member + "\n" + doc.raw[len(body):]
	}
	return doc.raw[:len(body)] + ",\n  " + member + doc.raw[len(body):]
}

// escapePath makes a literal key usable as a gjson/sjson path component.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '|', '#', '@', '*', '?', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
