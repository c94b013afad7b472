package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tccjustin/axon/internal/config"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/service/executor"
	"github.com/tccjustin/axon/internal/service/fs"
	"github.com/tccjustin/axon/internal/service/remote"
	"github.com/tccjustin/axon/internal/testing/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const marker = "FWDN_COMPLETED"

func testConfig() Config {
	return Config{
		Shell:              "/bin/sh",
		ScriptPrefix:       ".axon-task-",
		StageHidden:        true,
		Executor:           "cmd.exe",
		ExecutorArgs:       []string{"/c"},
		ExecutorConvention: pathmap.WindowsDrive,
		SentinelDir:        "/home/id/autotest_cs/.axon",
		Marker:             marker,
		PollInterval:       10 * time.Millisecond,
		Timeout:            10 * time.Second,
	}
}

func testTranslator(t *testing.T) *pathmap.Translator {
	t.Helper()
	env := pathmap.EnvFromConfig(config.DefaultConfig().Translator)
	env.Home = "/home/id"
	tr, err := pathmap.NewDefault(env, nil)
	require.NoError(t, err)
	return tr
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.NoError(t, err)
	return res
}

func newLocal(t *testing.T, fsys FileSystem, logger *zap.Logger) *Launcher {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	return New(fsys, executor.NewOSCommandExecutor(1<<20), &mocks.MockDetachedStarter{}, testTranslator(t), testConfig(), logger)
}

func TestLaunch_MonitoredSuccess(t *testing.T) {
	skipWithoutShell(t)
	l := newLocal(t, fs.NewOSFileSystem(), nil)

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "sh", Args: []string{"-c", "echo hi"}},
		Dir:     t.TempDir(),
	})
	require.NoError(t, err)

	res := waitResult(t, h)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.True(t, res.Success())
	assert.Empty(t, h.SentinelPath)
}

func TestLaunch_MonitoredFailure(t *testing.T) {
	skipWithoutShell(t)
	l := newLocal(t, fs.NewOSFileSystem(), nil)

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "sh", Args: []string{"-c", "echo bad >&2; exit 3"}}})
	require.NoError(t, err)

	res := waitResult(t, h)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "bad\n", res.Stderr)
	assert.False(t, res.Success())
}

func TestLaunch_HiddenCommandIsStagedAndRemoved(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	l := newLocal(t, fs.NewOSFileSystem(), nil)

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "sh", Args: []string{"-c", "ls -a; echo 'it''s ok'"}},
		Dir:     dir,
		Hidden:  true,
	})
	require.NoError(t, err)

	res := waitResult(t, h)
	require.Equal(t, OutcomeSucceeded, res.Outcome, res.Stderr)
	assert.Contains(t, res.Stdout, ".axon-task-"+h.ID+".sh")
	assert.Contains(t, res.Stdout, "its ok")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged script must be deleted after completion")
}

func TestLaunch_StagingFailureFallsBackToRawCommand(t *testing.T) {
	skipWithoutShell(t)
	fsys := mocks.NewMockFileSystem()
	fsys.SetOperationError("WriteFile", errors.New("read-only"))
	core, logs := observer.New(zapcore.WarnLevel)
	l := newLocal(t, fsys, zap.New(core))

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "sh", Args: []string{"-c", "echo raw"}},
		Hidden:  true,
	})
	require.NoError(t, err)

	res := waitResult(t, h)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "raw\n", res.Stdout)
	assert.Equal(t, 1, logs.FilterMessage("staging failed, running command directly").Len())
}

func TestLaunch_MonitoredStartFailure(t *testing.T) {
	dir := t.TempDir()
	l := newLocal(t, fs.NewOSFileSystem(), nil)

	_, err := l.Launch(context.Background(), Request{
		Command: Command{Path: filepath.Join(dir, "no-such-tool")},
		Dir:     dir,
	})

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, InProcessMonitored, launchErr.Target)

	var cmdErr *executor.CommandError
	assert.True(t, errors.As(err, &cmdErr))
}

func TestLaunch_StagedScriptRemovedWhenShellMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Shell = filepath.Join(dir, "no-such-shell")
	l := New(fs.NewOSFileSystem(), executor.NewOSCommandExecutor(1024), &mocks.MockDetachedStarter{}, testTranslator(t), cfg, nil)

	_, err := l.Launch(context.Background(), Request{Command: Command{Path: "true"}, Dir: dir, Hidden: true})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLaunch_MonitoredCancel(t *testing.T) {
	skipWithoutShell(t)
	l := newLocal(t, fs.NewOSFileSystem(), nil)

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "sleep", Args: []string{"30"}}})
	require.NoError(t, err)

	h.Cancel()
	res := waitResult(t, h)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestLaunch_EmptyCommand(t *testing.T) {
	l := newLocal(t, mocks.NewMockFileSystem(), nil)
	_, err := l.Launch(context.Background(), Request{})
	assert.ErrorIs(t, err, os.ErrInvalid)
}

func newDetached(t *testing.T, fsys FileSystem, starter DetachedStarter, mutate func(*Config)) *Launcher {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(fsys, executor.NewOSCommandExecutor(1024), starter, testTranslator(t), cfg, zaptest.NewLogger(t))
}

func TestLaunch_DetachedWrapsCommandWithTranslatedSentinel(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	starter := &mocks.MockDetachedStarter{}
	l := newDetached(t, fsys, starter, nil)

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "fwdn.exe", Args: []string{"--rom", `Z:\autotest_cs\x.rom`}},
		Dir:     `Z:\autotest_cs`,
		Target:  OutOfBandDetached,
	})
	require.NoError(t, err)
	defer h.Cancel()

	assert.Equal(t, "/home/id/autotest_cs/.axon/axon-"+h.ID+".done", h.SentinelPath)
	assert.Equal(t, `Z:\autotest_cs\.axon\axon-`+h.ID+`.done`, h.ExecutorSentinelPath)

	calls := starter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"cmd.exe", "/c",
		`fwdn.exe --rom Z:\autotest_cs\x.rom & echo FWDN_COMPLETED> "` + h.ExecutorSentinelPath + `"`,
	}, calls[0].Command)
	assert.Equal(t, `Z:\autotest_cs`, calls[0].Dir)

	fsys.CreateFile(h.SentinelPath, []byte(marker+"\r\n"))
	res := waitResult(t, h)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, -1, res.ExitCode)
	assert.False(t, fsys.Exists(h.SentinelPath))
}

func TestLaunch_DetachedPosixWrapping(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	starter := &mocks.MockDetachedStarter{}
	l := newDetached(t, fsys, starter, func(c *Config) {
		c.Executor = "/bin/sh"
		c.ExecutorArgs = []string{"-c"}
		c.ExecutorConvention = pathmap.Posix
		c.SentinelDir = "/tmp/axon"
	})

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "flash", Args: []string{"a b"}},
		Target:  OutOfBandDetached,
	})
	require.NoError(t, err)
	h.Cancel()
	waitResult(t, h)

	calls := starter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"/bin/sh", "-c", "flash 'a b'; echo FWDN_COMPLETED > /tmp/axon/axon-" + h.ID + ".done"}, calls[0].Command)
}

func TestLaunch_DetachedTimeout(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	l := newDetached(t, fsys, &mocks.MockDetachedStarter{}, func(c *Config) { c.Timeout = 80 * time.Millisecond })

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})
	require.NoError(t, err)

	res := waitResult(t, h)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.GreaterOrEqual(t, res.Duration, 80*time.Millisecond)
	assert.False(t, fsys.Exists(h.SentinelPath))
}

func TestLaunch_DetachedStartFailure(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	spawnErr := errors.New("executor missing")
	starter := &mocks.MockDetachedStarter{Err: spawnErr}
	l := newDetached(t, fsys, starter, nil)

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})

	assert.Nil(t, h)
	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, OutOfBandDetached, launchErr.Target)
	assert.ErrorIs(t, err, spawnErr)

	entries, listErr := fsys.ListDir("/home/id/autotest_cs/.axon")
	require.NoError(t, listErr)
	assert.Empty(t, entries)
}

func TestLaunch_DetachedCancelLeavesProcessAlone(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	starter := &mocks.MockDetachedStarter{}
	l := newDetached(t, fsys, starter, nil)

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})
	require.NoError(t, err)

	h.Cancel()
	res := waitResult(t, h)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Len(t, starter.Calls(), 1)
}

func TestLaunch_ConcurrentDetachedLaunchesAreIndependent(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	l := newDetached(t, fsys, &mocks.MockDetachedStarter{}, nil)

	a, err := l.Launch(context.Background(), Request{Command: Command{Path: "a.exe"}, Target: OutOfBandDetached})
	require.NoError(t, err)
	b, err := l.Launch(context.Background(), Request{Command: Command{Path: "b.exe"}, Target: OutOfBandDetached})
	require.NoError(t, err)
	require.NotEqual(t, a.SentinelPath, b.SentinelPath)

	fsys.CreateFile(a.SentinelPath, []byte(marker))
	assert.Equal(t, OutcomeCompleted, waitResult(t, a).Outcome)

	select {
	case <-b.Done():
		t.Fatal("completing one launch must not complete another")
	case <-time.After(50 * time.Millisecond):
	}

	b.Cancel()
	assert.Equal(t, OutcomeCancelled, waitResult(t, b).Outcome)
}

func TestLaunch_DetachedEndToEnd(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Executor = "/bin/sh"
	cfg.ExecutorArgs = []string{"-c"}
	cfg.ExecutorConvention = pathmap.Posix
	cfg.SentinelDir = dir
	osExec := executor.NewOSCommandExecutor(1024)
	l := New(fs.NewOSFileSystem(), osExec, osExec, testTranslator(t), cfg, zaptest.NewLogger(t))

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "sh", Args: []string{"-c", "exit 4"}},
		Target:  OutOfBandDetached,
	})
	require.NoError(t, err)

	res := waitResult(t, h)
	assert.Equal(t, OutcomeCompleted, res.Outcome, "marker is written whatever the exit status")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandle_WaitContextDoesNotCancel(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	l := newDetached(t, fsys, &mocks.MockDetachedStarter{}, nil)

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-h.Done():
		t.Fatal("handle finished after wait context expired")
	default:
	}

	h.Cancel()
	waitResult(t, h)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Translator.HomeDir = "/home/id"
	got, err := ConfigFrom(cfg, testTranslator(t))
	require.NoError(t, err)

	assert.Equal(t, pathmap.WindowsDrive, got.ExecutorConvention)
	assert.Equal(t, "/home/id/.axon", got.SentinelDir)
	assert.Equal(t, marker, got.Marker)
	assert.Equal(t, 10*time.Minute, got.Timeout)

	cfg.Translator.ExecutorConvention = "vms"
	_, err = ConfigFrom(cfg, testTranslator(t))
	assert.Error(t, err)
}

func TestConfigFrom_SentinelRoundTrip(t *testing.T) {
	tr := testTranslator(t)

	cfg := config.DefaultConfig()
	cfg.Translator.HomeDir = "/home/id"
	lcfg, err := ConfigFrom(cfg, tr)
	require.NoError(t, err)

	l := New(mocks.NewMockFileSystem(), executor.NewOSCommandExecutor(1024), &mocks.MockDetachedStarter{}, tr, lcfg, nil)
	local, remote := l.sentinelPaths("ID")
	assert.Equal(t, "/home/id/.axon/axon-ID.done", local)
	assert.Equal(t, `Z:\.axon\axon-ID.done`, remote)
	assert.Equal(t, local, tr.Translate(remote, pathmap.WindowsDrive, pathmap.Posix))

	tests := []struct {
		dir     string
		conv    string
		wantErr bool
	}{
		{dir: "/home/id/autotest_cs/.axon"},
		{dir: "/mnt/d/axon"},
		{dir: "/tmp", wantErr: true},
		{dir: "/var/run/axon", wantErr: true},
		{dir: "/tmp", conv: "posix"},
	}
	for _, tt := range tests {
		t.Run(tt.dir+tt.conv, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Translator.HomeDir = "/home/id"
			cfg.Monitor.SentinelDir = tt.dir
			if tt.conv != "" {
				cfg.Translator.ExecutorConvention = tt.conv
			}

			_, err := ConfigFrom(cfg, tr)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var dirErr *SentinelDirError
			require.ErrorAs(t, err, &dirErr)
			assert.Equal(t, tt.dir, dirErr.Dir)
			assert.Equal(t, "/home/id"+tt.dir+"/axon-check.done", dirErr.Back)
		})
	}
}

func TestLaunch_DetachedRejectsUnmappableSentinelDir(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	starter := &mocks.MockDetachedStarter{}
	l := newDetached(t, fsys, starter, func(c *Config) { c.SentinelDir = "/tmp" })

	h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})

	assert.Nil(t, h)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	var dirErr *SentinelDirError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, `Z:\tmp\axon-check.done`, dirErr.Remote)
	assert.Equal(t, "/home/id/tmp/axon-check.done", dirErr.Back)
	assert.Empty(t, starter.Calls())
}

func TestLaunch_ExecutorSentinelIsThePolledFile(t *testing.T) {
	for _, dir := range []string{"/home/id/autotest_cs/.axon", "/home/id/.axon", "/mnt/d/axon"} {
		t.Run(dir, func(t *testing.T) {
			fsys := mocks.NewMockFileSystem()
			starter := &mocks.MockDetachedStarter{}
			l := newDetached(t, fsys, starter, func(c *Config) { c.SentinelDir = dir })

			h, err := l.Launch(context.Background(), Request{Command: Command{Path: "fwdn.exe"}, Target: OutOfBandDetached})
			require.NoError(t, err)
			defer func() {
				h.Cancel()
				waitResult(t, h)
			}()

			back := testTranslator(t).Translate(h.ExecutorSentinelPath, pathmap.WindowsDrive, pathmap.Posix)
			assert.Equal(t, h.SentinelPath, back)

			calls := starter.Calls()
			require.Len(t, calls, 1)
			line := calls[0].Command[len(calls[0].Command)-1]
			assert.True(t, strings.HasSuffix(line, `> "`+h.ExecutorSentinelPath+`"`), line)
		})
	}
}

func TestLaunch_DetachedWindowsLineOverSSH(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	starter := &mocks.MockDetachedStarter{}
	l := newDetached(t, fsys, starter, func(c *Config) { c.SentinelDir = "/home/id/.axon" })

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: `Z:\tools\fwdn.exe`, Args: []string{"--rom", `Z:\build-axon\x.rom`}},
		Target:  OutOfBandDetached,
	})
	require.NoError(t, err)
	defer func() {
		h.Cancel()
		waitResult(t, h)
	}()

	calls := starter.Calls()
	require.Len(t, calls, 1)
	line := remote.BuildDetachedLine(remote.ShellWindows, calls[0].Command, "", nil)
	assert.Equal(t,
		`start "axon" /B cmd.exe /c "Z:\tools\fwdn.exe --rom Z:\build-axon\x.rom & echo FWDN_COMPLETED> "Z:\.axon\axon-`+h.ID+`.done""`,
		line)
	assert.NotContains(t, line, `\"`)
}

func TestLaunch_HiddenUnstagedCommandIsNotLogged(t *testing.T) {
	skipWithoutShell(t)
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := testConfig()
	cfg.StageHidden = false
	l := New(fs.NewOSFileSystem(), executor.NewOSCommandExecutor(1024), &mocks.MockDetachedStarter{}, testTranslator(t), cfg, zap.New(core))

	h, err := l.Launch(context.Background(), Request{
		Command: Command{Path: "sh", Args: []string{"-c", "echo s3cret-token >/dev/null"}},
		Hidden:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, waitResult(t, h).Outcome)

	assert.Equal(t, 1, logs.FilterMessage("launching hidden command").Len())
	for _, entry := range logs.All() {
		for key, value := range entry.ContextMap() {
			assert.NotEqual(t, "argv", key)
			assert.NotContains(t, fmt.Sprint(value), "s3cret-token")
		}
	}
}

func TestStage_ShebangFollowsShell(t *testing.T) {
	fsys := mocks.NewMockFileSystem()
	fsys.CreateDir("/w")
	cfg := testConfig()
	cfg.Shell = "/bin/bash"
	l := New(fsys, executor.NewOSCommandExecutor(1024), &mocks.MockDetachedStarter{}, testTranslator(t), cfg, nil)

	s, err := l.stage("ID", Request{Command: Command{Path: "echo", Args: []string{"hi"}}, Dir: "/w"})
	require.NoError(t, err)
	defer s.remove()

	content, err := fsys.ReadFile("/w/.axon-task-ID.sh")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho hi\n", content)
}

func TestCommandString(t *testing.T) {
	cmd := Command{Path: "fwdn", Args: []string{"--rom", "a b.rom", "it's", ""}}
	assert.Equal(t, `fwdn --rom 'a b.rom' 'it'"'"'s' ''`, cmd.String())
	assert.True(t, strings.HasPrefix(windowsLine(cmd.Argv()), `fwdn --rom "a b.rom"`))
}
