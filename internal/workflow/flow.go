// Package workflow ties resolution, translation and launching together:
// cache lookup, search, path rewrite for the executor, launch and wait.
package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathcache"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/resolver"
)

// PathPlaceholder in a job's command or directory is replaced with the
// resolved path.
const PathPlaceholder = "{path}"

// Resource names something to find. Key identifies it in the cache and
// defaults to Target.
type Resource struct {
	Key          string
	Root         string
	Target       string
	Kind         resolver.MatchKind
	MaxDepth     int
	Excluded     []string
	SearchUpward bool
}

func (r Resource) cacheKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Target
}

// Job is a launch whose command refers to a resolved resource.
type Job struct {
	Resource Resource
	Command  launcher.Command
	Dir      string
	Target   launcher.Target
	Hidden   bool
	Env      []string
}

type Deps struct {
	FS         statter
	Resolver   pathResolver
	Cache      pathCache // optional
	Translator pathTranslator
	Launcher   processLauncher
	// ExecutorConvention is the namespace detached processes see.
	ExecutorConvention pathmap.Convention
	Events             chan<- Event // optional
	Logger             *zap.Logger
}

type Flow struct {
	fs         statter
	resolver   pathResolver
	cache      pathCache
	translator pathTranslator
	launcher   processLauncher
	execConv   pathmap.Convention
	events     chan<- Event
	logger     *zap.Logger
}

func New(d Deps) *Flow {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		fs:         d.FS,
		resolver:   d.Resolver,
		cache:      d.Cache,
		translator: d.Translator,
		launcher:   d.Launcher,
		execConv:   d.ExecutorConvention,
		events:     d.Events,
		logger:     logger.With(zap.String("component", "workflow")),
	}
}

func (f *Flow) emit(ctx context.Context, ev Event) {
	if f.events == nil {
		return
	}
	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}

// Resolve returns the path of r, preferring a cached path that still
// exists with the right kind and name. Fresh results are written back to
// the cache; a failed write is only logged.
func (f *Flow) Resolve(ctx context.Context, r Resource) (string, error) {
	key := r.cacheKey()
	log := f.logger.With(zap.String("key", key))

	if f.cache != nil {
		entry, ok, err := f.cache.Get(key)
		switch {
		case err != nil:
			log.Warn("cache unreadable, searching", zap.Error(err))
		case ok && f.stillValid(entry.ResolvedPath, r):
			log.Debug("cache hit", zap.String("path", entry.ResolvedPath))
			f.emit(ctx, CacheHitEvent{Key: key, Path: entry.ResolvedPath})
			return entry.ResolvedPath, nil
		case ok:
			log.Info("cached path is stale, searching again", zap.String("path", entry.ResolvedPath))
			if err := f.cache.Delete(key); err != nil {
				log.Warn("failed to drop stale cache entry", zap.Error(err))
			}
		}
	}

	req, err := resolver.NewSearchRequest(r.Root, r.Target, r.Kind, r.MaxDepth, r.Excluded)
	if err != nil {
		return "", err
	}

	var path string
	if r.SearchUpward {
		path, err = f.resolver.Locate(ctx, req)
	} else {
		path, err = f.resolver.Resolve(ctx, req)
	}
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return "", &NotFoundError{Key: key, Root: r.Root, Target: r.Target}
		}
		return "", err
	}

	f.emit(ctx, ResolvedEvent{Key: key, Path: path})

	if f.cache != nil {
		if err := f.cache.Put(pathcache.Entry{Key: key, ResolvedPath: path}); err != nil {
			log.Warn("failed to cache resolved path", zap.Error(err))
		}
	}
	return path, nil
}

func (f *Flow) stillValid(path string, r Resource) bool {
	if path == "" || filepath.Base(path) != r.Target {
		return false
	}
	info, err := f.fs.Stat(path)
	if err != nil {
		return false
	}
	return r.Kind.Accepts(info.IsDir())
}

// ResolveAll resolves resources concurrently. The first failure cancels the
// remaining searches and is returned.
func (f *Flow) ResolveAll(ctx context.Context, resources []Resource) (map[string]string, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[string]string, len(resources))

	for _, r := range resources {
		g.Go(func() error {
			path, err := f.Resolve(gctx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			out[r.cacheKey()] = path
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Run resolves the job's resource, rewrites it for detached executors,
// launches the command and waits for a terminal outcome. Cancelling ctx
// cancels the launch and returns its cancelled result.
func (f *Flow) Run(ctx context.Context, job Job) (launcher.Result, error) {
	path, err := f.Resolve(ctx, job.Resource)
	if err != nil {
		return launcher.Result{}, err
	}

	if job.Target == launcher.OutOfBandDetached {
		translated, rule := f.translator.TranslateRule(path, pathmap.Posix, f.execConv)
		f.emit(ctx, TranslatedEvent{From: pathmap.Posix, To: f.execConv, In: path, Out: translated, Rule: rule})
		path = translated
	}

	req := launcher.Request{
		Command: substitute(job.Command, path),
		Dir:     strings.ReplaceAll(job.Dir, PathPlaceholder, path),
		Target:  job.Target,
		Hidden:  job.Hidden,
		Env:     job.Env,
	}

	h, err := f.launcher.Launch(ctx, req)
	if err != nil {
		return launcher.Result{}, err
	}
	f.emit(ctx, LaunchedEvent{TaskID: h.ID, Target: h.Target, SentinelPath: h.SentinelPath})
	f.emit(ctx, WaitingEvent{TaskID: h.ID, Target: h.Target})

	res, err := h.Wait(ctx)
	if err != nil {
		h.Cancel()
		res, _ = h.Wait(context.Background())
	}

	f.logger.Info("job finished",
		zap.String("task_id", h.ID),
		zap.Stringer("outcome", res.Outcome),
		zap.Duration("duration", res.Duration))
	f.emit(context.WithoutCancel(ctx), FinishedEvent{TaskID: h.ID, Outcome: res.Outcome, ExitCode: res.ExitCode, Duration: res.Duration})
	return res, nil
}

func substitute(cmd launcher.Command, path string) launcher.Command {
	out := launcher.Command{Path: strings.ReplaceAll(cmd.Path, PathPlaceholder, path)}
	for _, a := range cmd.Args {
		out.Args = append(out.Args, strings.ReplaceAll(a, PathPlaceholder, path))
	}
	return out
}
