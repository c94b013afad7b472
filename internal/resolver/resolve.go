// Package resolver finds a named file or directory inside a tree with a
// bounded, exclusion-aware search. It only reads the filesystem.
package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/service/fs"
)

// FileSystem is the read capability the resolver needs.
type FileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ListDir(path string) ([]fs.DirEntry, error)
}

// Resolver holds no per-search state; concurrent searches share nothing.
type Resolver struct {
	fs     FileSystem
	logger *zap.Logger
}

// New creates a resolver. A nil logger disables logging.
func New(fs FileSystem, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fs: fs, logger: logger.With(zap.String("component", "resolver"))}
}

type listing struct {
	entries []fs.DirEntry
	err     error
}

// search is the state of a single Resolve call.
type search struct {
	req    SearchRequest
	fs     FileSystem
	logger *zap.Logger
	memo   map[string]listing
}

// Resolve returns the shallowest entry named req.TargetName of the requested
// kind under req.RootPath, at most req.MaxDepth directories below the root's
// children. It returns ErrNotFound when there is none and *SearchError when
// the root cannot be read.
func (r *Resolver) Resolve(ctx context.Context, req SearchRequest) (string, error) {
	log := r.logger.With(
		zap.String("root", req.RootPath),
		zap.String("target", req.TargetName),
		zap.Stringer("kind", req.Kind),
		zap.Int("max_depth", req.MaxDepth),
	)

	if filepath.Base(req.RootPath) == req.TargetName && req.Kind != MatchFile {
		log.Debug("search root is the target")
		return req.RootPath, nil
	}

	s := &search{req: req, fs: r.fs, logger: log, memo: make(map[string]listing)}

	if _, err := s.list(req.RootPath); err != nil {
		return "", &SearchError{Path: req.RootPath, Cause: err}
	}

	// Depth-limited passes with a growing bound give shallow-first results
	// while keeping the walk itself depth-first in listing order.
	for bound := 0; bound <= req.MaxDepth; bound++ {
		path, err := s.walk(ctx, req.RootPath, 0, bound)
		if err == nil {
			log.Debug("target resolved", zap.String("path", path), zap.Int("depth", bound))
			return path, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	log.Debug("target not found")
	return "", ErrNotFound
}

func (s *search) walk(ctx context.Context, dir string, depth, bound int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries, err := s.list(dir)
	if err != nil {
		return "", ErrNotFound
	}

	for _, e := range entries {
		if e.Name == s.req.TargetName && s.req.Kind.Accepts(e.IsDir) {
			return filepath.Join(dir, e.Name), nil
		}
	}

	if depth == bound {
		return "", ErrNotFound
	}

	for _, e := range entries {
		if !e.IsDir || e.Symlink || s.req.excludes(e.Name) {
			continue
		}
		path, err := s.walk(ctx, filepath.Join(dir, e.Name), depth+1, bound)
		if !errors.Is(err, ErrNotFound) {
			return path, err
		}
	}

	return "", ErrNotFound
}

// list reads a directory once per search; failures are remembered so a bad
// branch is logged once.
func (s *search) list(dir string) ([]fs.DirEntry, error) {
	if l, ok := s.memo[dir]; ok {
		return l.entries, l.err
	}

	entries, err := s.fs.ListDir(dir)
	if err != nil && dir != s.req.RootPath {
		s.logger.Warn("skipping unreadable directory", zap.String("dir", dir), zap.Error(err))
	}
	s.memo[dir] = listing{entries: entries, err: err}
	return entries, err
}
