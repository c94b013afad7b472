package resolver

import (
	"fmt"
	"strings"
)

// MatchKind restricts what kind of entry satisfies a search.
type MatchKind int

const (
	MatchAny MatchKind = iota
	MatchFile
	MatchDirectory
)

func (k MatchKind) String() string {
	switch k {
	case MatchFile:
		return "file"
	case MatchDirectory:
		return "dir"
	default:
		return "any"
	}
}

// ParseMatchKind accepts "file", "dir"/"directory" or "any".
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "f":
		return MatchFile, nil
	case "dir", "directory", "d":
		return MatchDirectory, nil
	case "any", "":
		return MatchAny, nil
	default:
		return 0, fmt.Errorf("%w: unknown match kind %q", ErrInvalidRequest, s)
	}
}

// Accepts reports whether an entry of the given type satisfies k.
func (k MatchKind) Accepts(isDir bool) bool {
	switch k {
	case MatchFile:
		return !isDir
	case MatchDirectory:
		return isDir
	default:
		return true
	}
}

// SearchRequest describes one bounded search. Build it with NewSearchRequest
// and treat it as read-only.
type SearchRequest struct {
	RootPath   string
	TargetName string
	Kind       MatchKind
	MaxDepth   int
	Excluded   map[string]struct{}
}

// NewSearchRequest validates its arguments and copies the exclusion list.
func NewSearchRequest(root, target string, kind MatchKind, maxDepth int, excluded []string) (SearchRequest, error) {
	if strings.TrimSpace(root) == "" {
		return SearchRequest{}, fmt.Errorf("%w: root path is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(target) == "" {
		return SearchRequest{}, fmt.Errorf("%w: target name is empty", ErrInvalidRequest)
	}
	if strings.ContainsAny(target, `/\`) {
		return SearchRequest{}, fmt.Errorf("%w: target name %q contains a path separator", ErrInvalidRequest, target)
	}
	if maxDepth < 0 {
		return SearchRequest{}, fmt.Errorf("%w: max depth %d is negative", ErrInvalidRequest, maxDepth)
	}

	set := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		if name != "" {
			set[name] = struct{}{}
		}
	}

	return SearchRequest{
		RootPath:   root,
		TargetName: target,
		Kind:       kind,
		MaxDepth:   maxDepth,
		Excluded:   set,
	}, nil
}

func (r SearchRequest) excludes(name string) bool {
	_, ok := r.Excluded[name]
	return ok
}
