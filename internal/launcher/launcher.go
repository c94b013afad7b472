// Package launcher starts external tools either as monitored local jobs or
// as released out-of-band processes tracked through a sentinel file.
package launcher

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/config"
	"github.com/tccjustin/axon/internal/monitor"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/service/executor"
)

// FileSystem covers script staging and sentinel handling.
type FileSystem interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string, perm os.FileMode) error
	Remove(path string) error
	EnsureDirs(path string) error
}

// ProcessStarter starts a monitored local job.
type ProcessStarter interface {
	Start(ctx context.Context, command []string, dir string, env []string) (*executor.Process, error)
}

// DetachedStarter spawns a process whose exit status is never observed,
// locally or on another host.
type DetachedStarter interface {
	StartDetached(ctx context.Context, command []string, dir string, env []string) error
}

type Translator interface {
	Translate(path string, from, to pathmap.Convention) string
}

type Config struct {
	Shell              string
	ScriptPrefix       string
	StageHidden        bool
	Executor           string
	ExecutorArgs       []string
	ExecutorConvention pathmap.Convention
	SentinelDir        string
	Marker             string
	PollInterval       time.Duration
	Timeout            time.Duration
	Watch              bool
}

// ConfigFrom assembles the launcher config from the application config. The
// sentinel directory defaults to ~/.axon. A configured directory must survive
// a round trip through tr: the detached process writes the translated path,
// and the monitor polls the original. The default is checked when a detached
// launch needs it.
func ConfigFrom(cfg *config.Config, tr Translator) (Config, error) {
	conv, err := pathmap.ParseConvention(cfg.Translator.ExecutorConvention)
	if err != nil {
		return Config{}, err
	}
	dir := cfg.Monitor.SentinelDir
	if dir != "" {
		if err := checkRoundTrip(tr, dir, conv); err != nil {
			return Config{}, err
		}
	} else {
		home := cfg.Translator.HomeDir
		if home == "" {
			if home, err = os.UserHomeDir(); err != nil {
				return Config{}, &SentinelDirError{Dir: "~/.axon", Cause: err}
			}
		}
		dir = filepath.Join(home, ".axon")
	}
	return Config{
		Shell:              cfg.Launcher.Shell,
		ScriptPrefix:       cfg.Launcher.ScriptPrefix,
		StageHidden:        cfg.Launcher.StageHiddenCommands,
		Executor:           cfg.Launcher.Executor,
		ExecutorArgs:       append([]string(nil), cfg.Launcher.ExecutorArgs...),
		ExecutorConvention: conv,
		SentinelDir:        dir,
		Marker:             cfg.Monitor.Marker,
		PollInterval:       cfg.Monitor.PollInterval(),
		Timeout:            cfg.Monitor.Timeout(),
		Watch:              cfg.Monitor.Watch,
	}, nil
}

func checkRoundTrip(tr Translator, dir string, conv pathmap.Convention) error {
	local := filepath.ToSlash(filepath.Join(dir, sentinelName("check")))
	remote := tr.Translate(local, pathmap.Posix, conv)
	back := path.Clean(tr.Translate(remote, conv, pathmap.Posix))
	if back != local {
		return &SentinelDirError{Dir: dir, Remote: remote, Back: back}
	}
	return nil
}

type Launcher struct {
	fs         FileSystem
	proc       ProcessStarter
	detached   DetachedStarter
	translator Translator
	cfg        Config
	logger     *zap.Logger
}

func New(fs FileSystem, proc ProcessStarter, detached DetachedStarter, translator Translator, cfg Config, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		fs:         fs,
		proc:       proc,
		detached:   detached,
		translator: translator,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "launcher")),
	}
}

// Launch starts req and returns a handle tracking it. Only a failure to
// start the process is returned as an error.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Handle, error) {
	id := uuid.NewString()
	log := l.logger.With(zap.String("task_id", id), zap.Stringer("target", req.Target))

	if req.Command.Path == "" {
		return nil, &LaunchError{TaskID: id, Target: req.Target, Cause: os.ErrInvalid}
	}

	switch req.Target {
	case OutOfBandDetached:
		return l.launchDetached(ctx, id, req, log)
	default:
		return l.launchMonitored(ctx, id, req, log)
	}
}

func (l *Launcher) launchMonitored(ctx context.Context, id string, req Request, log *zap.Logger) (*Handle, error) {
	argv := req.Command.Argv()

	var script *stagedScript
	if req.Hidden && l.cfg.StageHidden {
		s, err := l.stage(id, req)
		if err != nil {
			log.Warn("staging failed, running command directly", zap.Error(err))
		} else {
			script = s
			argv = []string{l.cfg.Shell, s.path}
			log.Debug("command staged", zap.String("script", s.path))
		}
	}
	switch {
	case req.Hidden && script == nil:
		log.Info("launching hidden command", zap.String("dir", req.Dir))
	case !req.Hidden:
		log.Info("launching", zap.Strings("argv", argv), zap.String("dir", req.Dir))
	}

	// The job must outlive the caller's ctx; Cancel on the handle kills it.
	proc, err := l.proc.Start(context.WithoutCancel(ctx), argv, req.Dir, req.Env)
	if err != nil {
		script.remove()
		return nil, &LaunchError{TaskID: id, Target: InProcessMonitored, Cause: err}
	}

	h := newHandle(id, InProcessMonitored)
	h.cancel = func() {
		select {
		case <-h.done:
			return
		default:
		}
		if h.cancelled.CompareAndSwap(false, true) {
			_ = proc.Kill()
		}
	}

	go func() {
		res, err := proc.Wait()
		script.remove()

		result := Result{Outcome: OutcomeSucceeded, ExitCode: -1}
		if res != nil {
			result.ExitCode = res.ExitCode
			result.Stdout = res.Stdout
			result.Stderr = res.Stderr
			result.Truncated = res.Truncated
		}
		switch {
		case h.cancelled.Load():
			result.Outcome = OutcomeCancelled
		case err != nil:
			result.Outcome = OutcomeFailed
		}
		log.Info("job finished", zap.Stringer("outcome", result.Outcome), zap.Int("exit_code", result.ExitCode))
		h.finish(result)
	}()

	return h, nil
}

func (l *Launcher) launchDetached(ctx context.Context, id string, req Request, log *zap.Logger) (*Handle, error) {
	if req.Hidden {
		log.Info("hidden staging applies to monitored jobs only, launching detached command as given")
	}

	if err := checkRoundTrip(l.translator, l.cfg.SentinelDir, l.cfg.ExecutorConvention); err != nil {
		return nil, &LaunchError{TaskID: id, Target: OutOfBandDetached, Cause: err}
	}

	local, remote := l.sentinelPaths(id)
	if err := l.fs.EnsureDirs(l.cfg.SentinelDir); err != nil {
		log.Warn("cannot create sentinel directory", zap.String("dir", l.cfg.SentinelDir), zap.Error(err))
	}

	ch := monitor.Channel{
		Path:         local,
		Expected:     l.cfg.Marker,
		PollInterval: l.cfg.PollInterval,
		Timeout:      l.cfg.Timeout,
		CreatedAt:    time.Now(),
	}
	mon := monitor.New(l.fs, ch, monitor.WithLogger(l.logger), monitor.WithWatch(l.cfg.Watch))
	if err := mon.Prepare(); err != nil {
		log.Warn("could not remove stale sentinel", zap.Error(err))
	}

	argv := l.wrapDetached(req.Command, remote)
	log.Info("launching detached", zap.String("sentinel", local), zap.String("executor_sentinel", remote))

	if err := l.detached.StartDetached(ctx, argv, req.Dir, req.Env); err != nil {
		mon.Cancel()
		mon.Run(context.Background())
		return nil, &LaunchError{TaskID: id, Target: OutOfBandDetached, Cause: err}
	}

	h := newHandle(id, OutOfBandDetached)
	h.started = ch.CreatedAt
	h.SentinelPath = local
	h.ExecutorSentinelPath = remote
	h.cancel = mon.Cancel

	go func() {
		state := mon.Run(context.Background())
		result := Result{ExitCode: -1}
		switch state {
		case monitor.StateCompleted:
			result.Outcome = OutcomeCompleted
		case monitor.StateTimedOut:
			result.Outcome = OutcomeTimedOut
		default:
			result.Outcome = OutcomeCancelled
		}
		h.finish(result)
	}()

	return h, nil
}
