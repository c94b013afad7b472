package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/resolver"
	"github.com/tccjustin/axon/internal/workflow"
)

// searchFlags are shared by resolve and run.
type searchFlags struct {
	root    string
	kind    string
	depth   int
	exclude []string
	upward  bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.root, "root", "", "search root (default workspace)")
	cmd.Flags().StringVar(&f.kind, "kind", "any", "entry kind: file, dir or any")
	cmd.Flags().IntVar(&f.depth, "depth", -1, "maximum search depth (default from config)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "extra directory names to skip")
	cmd.Flags().BoolVar(&f.upward, "up", false, "check ancestors of the root before searching down")
}

func (f *searchFlags) resource(a *app, key, target string) (workflow.Resource, error) {
	kind, err := resolver.ParseMatchKind(f.kind)
	if err != nil {
		return workflow.Resource{}, err
	}
	root := f.root
	if root == "" {
		root = a.workspace
	}
	depth := f.depth
	if depth < 0 {
		depth = a.cfg.Resolver.MaxDepth
	}
	excluded := append(append([]string(nil), a.cfg.Resolver.ExcludedNames...), f.exclude...)
	return workflow.Resource{
		Key:          key,
		Root:         root,
		Target:       target,
		Kind:         kind,
		MaxDepth:     depth,
		Excluded:     excluded,
		SearchUpward: f.upward,
	}, nil
}

// launchFlags are shared by launch and run.
type launchFlags struct {
	detached bool
	dir      string
	hidden   bool
}

func (f *launchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.detached, "detached", false, "release the process and wait for its completion marker")
	cmd.Flags().StringVar(&f.dir, "dir", "", "working directory of the process")
	cmd.Flags().BoolVar(&f.hidden, "hidden", false, "run without a visible console")
}

func (f *launchFlags) target() launcher.Target {
	if f.detached {
		return launcher.OutOfBandDetached
	}
	return launcher.InProcessMonitored
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		sf         searchFlags
		candidates []string
		maxAge     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resolve <key> <target>",
		Short: "Find a named file or directory, using the workspace path cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := sf.resource(a, args[0], args[1])
			if err != nil {
				return err
			}
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			path, err := svc.flow(a, nil).Resolve(ctx, res)
			if err != nil {
				return a.classified(launcher.Result{}, err)
			}
			if len(candidates) > 0 {
				if path, err = svc.resolver.FirstExisting(path, candidates, resolver.MatchAny); err != nil {
					return a.classified(launcher.Result{}, err)
				}
			}
			if maxAge > 0 {
				if err := svc.resolver.CheckFresh(path, maxAge, time.Now()); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringSliceVar(&candidates, "candidates", nil, "print the first of these names that exists inside the resolved directory")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "fail if the result was modified longer ago than this")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the workspace path cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			keys, err := svc.cache.Keys()
			if err != nil {
				return err
			}
			all, err := svc.cache.All()
			if err != nil {
				return err
			}
			for _, k := range keys {
				e := all[k]
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", k, e.ResolvedPath, e.DiscoveredAtVersion)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "forget <key>...",
		Short: "Drop cached paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			for _, k := range args {
				if err := svc.cache.Delete(k); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return cmd
}

func newTranslateCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "translate <path>",
		Short: "Translate a path between path conventions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				to = a.cfg.Translator.ExecutorConvention
			}
			fromConv, err := pathmap.ParseConvention(from)
			if err != nil {
				return err
			}
			toConv, err := pathmap.ParseConvention(to)
			if err != nil {
				return err
			}
			tr, err := a.translator()
			if err != nil {
				return err
			}

			out, rule := tr.TranslateRule(args[0], fromConv, toConv)
			if rule == "" {
				rule = "-"
			}
			fmt.Fprintln(a.stdout, out)
			fmt.Fprintf(a.stdout, "rule: %s\n", rule)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "posix", "source convention: posix or windows")
	cmd.Flags().StringVar(&to, "to", "", "target convention (default executor convention)")
	return cmd
}

func newRulesCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the active translation rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.translator()
			if err != nil {
				return err
			}
			md := rulesMarkdown(tr)
			if plain {
				fmt.Fprint(a.stdout, md)
				return nil
			}

			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(120),
			)
			if err != nil {
				return err
			}
			out, err := renderer.Render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}

func rulesMarkdown(tr *pathmap.Translator) string {
	var b strings.Builder
	for _, dir := range [][2]pathmap.Convention{
		{pathmap.Posix, pathmap.WindowsDrive},
		{pathmap.WindowsDrive, pathmap.Posix},
	} {
		fmt.Fprintf(&b, "## %s → %s\n\n", dir[0], dir[1])
		fmt.Fprintln(&b, "| # | Rule | Match | Output | Fallback |")
		fmt.Fprintln(&b, "|---|------|-------|--------|----------|")
		for i, r := range tr.Rules(dir[0], dir[1]) {
			fallback := ""
			if r.Fallback {
				fallback = "yes"
			}
			fmt.Fprintf(&b, "| %d | %s | `%s` | `%s` | %s |\n",
				i+1, r.Name, cell(r.Pattern.String()), cell(r.Source.Output), fallback)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func newLaunchCmd(a *app) *cobra.Command {
	var lf launchFlags
	cmd := &cobra.Command{
		Use:   "launch [flags] -- <command> [args...]",
		Short: "Launch a command and wait for it to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			req := launcher.Request{
				Command: launcher.Command{Path: args[0], Args: args[1:]},
				Dir:     lf.dir,
				Target:  lf.target(),
				Hidden:  lf.hidden,
			}
			res, err := a.withProgress(ctx, req.Command.String(), func(ctx context.Context, events chan<- workflow.Event) (launcher.Result, error) {
				return launchAndWait(ctx, svc.launcher, req, events)
			})
			return a.finish(res, err)
		},
	}
	lf.register(cmd)
	return cmd
}

// launchAndWait reports the same lifecycle events a workflow run does.
func launchAndWait(ctx context.Context, l *launcher.Launcher, req launcher.Request, events chan<- workflow.Event) (launcher.Result, error) {
	send := func(ev workflow.Event) {
		if events != nil {
			events <- ev
		}
	}

	h, err := l.Launch(ctx, req)
	if err != nil {
		return launcher.Result{}, err
	}
	send(workflow.LaunchedEvent{TaskID: h.ID, Target: h.Target, SentinelPath: h.SentinelPath})
	send(workflow.WaitingEvent{TaskID: h.ID, Target: h.Target})

	res, err := h.Wait(ctx)
	if err != nil {
		h.Cancel()
		res, _ = h.Wait(context.Background())
	}
	send(workflow.FinishedEvent{TaskID: h.ID, Outcome: res.Outcome, ExitCode: res.ExitCode, Duration: res.Duration})
	return res, nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		sf searchFlags
		lf launchFlags
	)
	cmd := &cobra.Command{
		Use:   "run <key> <target> [flags] -- <command> [args...]",
		Short: "Resolve a target and launch a command against it",
		Long: "Resolve <target>, translate it for detached executors and launch the command.\n" +
			"Occurrences of " + workflow.PathPlaceholder + " in the command, its arguments and --dir are replaced with the path.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := sf.resource(a, args[0], args[1])
			if err != nil {
				return err
			}
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			job := workflow.Job{
				Resource: res,
				Command:  launcher.Command{Path: args[2], Args: args[3:]},
				Dir:      lf.dir,
				Target:   lf.target(),
				Hidden:   lf.hidden,
			}
			result, err := a.withProgress(ctx, job.Command.String(), func(ctx context.Context, events chan<- workflow.Event) (launcher.Result, error) {
				return svc.flow(a, events).Run(ctx, job)
			})
			return a.finish(result, err)
		},
	}
	sf.register(cmd)
	lf.register(cmd)
	return cmd
}

// finish prints captured output and converts the outcome to an exit code:
// 0 success, 1 failure, 2 timeout, 3 cancelled.
func (a *app) finish(res launcher.Result, err error) error {
	if err != nil {
		return a.classified(res, err)
	}
	if res.Stdout != "" {
		fmt.Fprint(a.stdout, res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(a.stderr, res.Stderr)
	}

	a.logger.Debug("launch finished",
		zap.Stringer("outcome", res.Outcome),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("truncated", res.Truncated))

	switch res.Outcome {
	case launcher.OutcomeSucceeded, launcher.OutcomeCompleted:
		return nil
	case launcher.OutcomeTimedOut:
		return &exitError{code: 2, msg: "timed out waiting for completion marker"}
	case launcher.OutcomeCancelled:
		return &exitError{code: 3, msg: "cancelled"}
	default:
		return &exitError{code: 1, msg: fmt.Sprintf("command failed with exit code %d", res.ExitCode)}
	}
}

func (a *app) classified(res launcher.Result, err error) error {
	switch workflow.Classify(res, err) {
	case workflow.ActionConfigureManually:
		return fmt.Errorf("%w\nset the path manually or widen the search with --root/--depth", err)
	case workflow.ActionOpenLog:
		return fmt.Errorf("%w\nrun with --verbose for details", err)
	default:
		return err
	}
}
