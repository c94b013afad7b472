package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/service/fs"
)

// FindAncestor walks from start up to the filesystem root and returns the
// path of the first direct child named target of the given kind.
func (r *Resolver) FindAncestor(ctx context.Context, start, target string, kind MatchKind) (string, error) {
	dir := filepath.Clean(start)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := filepath.Join(dir, target)
		if r.exists(candidate, kind) {
			r.logger.Debug("target found in ancestor", zap.String("start", start), zap.String("path", candidate))
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Locate tries the upward ancestor walk first, then the bounded downward search.
func (r *Resolver) Locate(ctx context.Context, req SearchRequest) (string, error) {
	path, err := r.FindAncestor(ctx, req.RootPath, req.TargetName, req.Kind)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return r.Resolve(ctx, req)
}

// FirstExisting returns the first candidate under dir that exists with the
// given kind, in candidate order.
func (r *Resolver) FirstExisting(dir string, candidates []string, kind MatchKind) (string, error) {
	for _, name := range candidates {
		if name == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if r.exists(path, kind) {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// CheckFresh returns *StaleError when path was last modified more than maxAge
// before now. A non-positive maxAge disables the check.
func (r *Resolver) CheckFresh(path string, maxAge time.Duration, now time.Time) error {
	info, err := r.fs.Stat(path)
	if err != nil {
		if fs.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if maxAge <= 0 {
		return nil
	}
	if age := now.Sub(info.ModTime()); age > maxAge {
		return &StaleError{Path: path, Age: age, MaxAge: maxAge}
	}
	return nil
}

func (r *Resolver) exists(path string, kind MatchKind) bool {
	info, err := r.fs.Stat(path)
	if err != nil {
		if !fs.IsNotExist(err) {
			r.logger.Debug("stat failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return kind.Accepts(info.IsDir())
}
