package main

import (
	"os"
	"path/filepath"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathcache"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/resolver"
	"github.com/tccjustin/axon/internal/service/executor"
	"github.com/tccjustin/axon/internal/service/fs"
	"github.com/tccjustin/axon/internal/service/remote"
	"github.com/tccjustin/axon/internal/workflow"
)

// services holds the concrete components built from the loaded config.
type services struct {
	fs         *fs.OSFileSystem
	translator *pathmap.Translator
	resolver   *resolver.Resolver
	cache      *pathcache.Store
	launcher   *launcher.Launcher
	execConv   pathmap.Convention
}

func (a *app) translator() (*pathmap.Translator, error) {
	env := pathmap.EnvFromConfig(a.cfg.Translator)
	if env.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			env.Home = home
		}
	}

	logger := a.logger
	if path := a.cfg.Translator.RulesFile; path != "" {
		specs, err := pathmap.LoadRules(path)
		if err != nil {
			return nil, err
		}
		return pathmap.New(env, specs, logger)
	}
	return pathmap.NewDefault(env, logger)
}

func (a *app) services() (*services, error) {
	osFS := fs.NewOSFileSystem()

	tr, err := a.translator()
	if err != nil {
		return nil, err
	}

	lcfg, err := launcher.ConfigFrom(a.cfg, tr)
	if err != nil {
		return nil, err
	}

	exec := executor.NewOSCommandExecutor(a.cfg.Launcher.MaxOutputBytes)

	var detached launcher.DetachedStarter = exec
	if a.cfg.Remote.Enabled {
		shell := remote.ShellPosix
		if lcfg.ExecutorConvention == pathmap.WindowsDrive {
			shell = remote.ShellWindows
		}
		detached = remote.NewSSHStarter(a.cfg.Remote, shell)
	}

	settings := a.cfg.Cache.SettingsFile
	if !filepath.IsAbs(settings) {
		settings = filepath.Join(a.workspace, settings)
	}

	return &services{
		fs:         osFS,
		translator: tr,
		resolver:   resolver.New(osFS, a.logger),
		cache:      pathcache.New(osFS, settings, a.cfg.Cache.Section, pathcache.GitVersioner{Root: a.workspace}, a.logger),
		launcher:   launcher.New(osFS, exec, detached, tr, lcfg, a.logger),
		execConv:   lcfg.ExecutorConvention,
	}, nil
}

func (s *services) flow(a *app, events chan<- workflow.Event) *workflow.Flow {
	return workflow.New(workflow.Deps{
		FS:                 s.fs,
		Resolver:           s.resolver,
		Cache:              s.cache,
		Translator:         s.translator,
		Launcher:           s.launcher,
		ExecutorConvention: s.execConv,
		Events:             events,
		Logger:             a.logger,
	})
}
