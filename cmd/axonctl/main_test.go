package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/config"
	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/resolver"
	"github.com/tccjustin/axon/internal/workflow"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cfgPath := filepath.Join(t.TempDir(), "missing.json")
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTranslateCommand(t *testing.T) {
	out, _, err := execute(t, "translate", "/home/id/autotest_cs/build-axon/x.rom")
	require.NoError(t, err)
	assert.Equal(t, "Z:\\autotest_cs\\build-axon\\x.rom\nrule: home-project\n", out)

	out, _, err = execute(t, "translate", "--from", "posix", "--to", "posix", "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b\nrule: -\n", out)

	_, _, err = execute(t, "translate", "--from", "vms", "/a")
	assert.ErrorIs(t, err, pathmap.ErrUnknownConvention)
}

func TestRulesCommandPlain(t *testing.T) {
	out, _, err := execute(t, "rules", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "## posix → windows")
	assert.Contains(t, out, "## windows → posix")
	assert.Contains(t, out, "| 1 | home-project |")
	assert.Contains(t, out, "drive-letter")
}

func TestRulesMarkdownEscapesPipes(t *testing.T) {
	tr, err := pathmap.NewDefault(pathmap.EnvFromConfig(config.DefaultConfig().Translator), nil)
	require.NoError(t, err)

	md := rulesMarkdown(tr)
	for _, line := range strings.Split(md, "\n") {
		if !strings.HasPrefix(line, "| 1 | home-project") {
			continue
		}
		assert.Equal(t, 6, strings.Count(line, "|")-strings.Count(line, `\|`),
			"alternations inside patterns must not add columns: %s", line)
		assert.Contains(t, line, `\|`)
	}
}

func TestResolveCommandWritesCache(t *testing.T) {
	ws := t.TempDir()
	target := filepath.Join(ws, "out", "images", "fw.rom")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("rom"), 0o644))

	out, _, err := execute(t, "--workspace", ws, "resolve", "rom", "fw.rom", "--kind", "file")
	require.NoError(t, err)
	assert.Equal(t, target+"\n", out)

	settings, err := os.ReadFile(filepath.Join(ws, ".vscode", "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(settings), "axon.resolvedPaths")
	assert.Contains(t, string(settings), "fw.rom")

	_, _, err = execute(t, "--workspace", ws, "resolve", "cfg", "missing.cfg")
	var nf *workflow.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLaunchCommandExitCodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	out, _, err := execute(t, "launch", "--", "/bin/sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, _, err = execute(t, "launch", "--", "/bin/sh", "-c", "exit 4")
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 1, exit.code)
	assert.Contains(t, exit.msg, "exit code 4")
}

func TestFinishMapsOutcomes(t *testing.T) {
	a := &app{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, logger: zap.NewNop()}

	tests := []struct {
		outcome launcher.Outcome
		code    int
	}{
		{launcher.OutcomeSucceeded, 0},
		{launcher.OutcomeCompleted, 0},
		{launcher.OutcomeFailed, 1},
		{launcher.OutcomeTimedOut, 2},
		{launcher.OutcomeCancelled, 3},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			err := a.finish(launcher.Result{Outcome: tt.outcome}, nil)
			if tt.code == 0 {
				assert.NoError(t, err)
				return
			}
			var exit *exitError
			require.ErrorAs(t, err, &exit)
			assert.Equal(t, tt.code, exit.code)
		})
	}
}

func TestDescribeEvents(t *testing.T) {
	step, status := describe(workflow.ResolvedEvent{Key: "rom", Path: "/w/fw.rom"})
	assert.Contains(t, step, "rom")
	assert.Equal(t, "launching", status)

	_, status = describe(workflow.WaitingEvent{Target: launcher.OutOfBandDetached})
	assert.Equal(t, "waiting for completion marker", status)

	step, _ = describe(workflow.FinishedEvent{Outcome: launcher.OutcomeTimedOut, Duration: 1500 * time.Millisecond})
	assert.Contains(t, step, "timed_out")
}

func TestProgressModelQuitsWhenEventsClose(t *testing.T) {
	events := make(chan workflow.Event)
	cancelled := false
	m := newProgressModel("fwdn.exe", events, func() { cancelled = true })

	next, _ := m.Update(eventMsg{workflow.ResolvedEvent{Key: "rom", Path: "/w/fw.rom"}})
	m = next.(progressModel)
	assert.Len(t, m.steps, 1)
	assert.Contains(t, m.View(), "launching")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(progressModel)
	assert.True(t, cancelled)
	assert.Equal(t, "cancelling", m.status)

	next, cmd := m.Update(eventsClosedMsg{})
	m = next.(progressModel)
	assert.True(t, m.done)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestResolveCandidatesAndCacheCommands(t *testing.T) {
	ws := t.TempDir()
	boot := filepath.Join(ws, "build", "boot-firmware")
	require.NoError(t, os.MkdirAll(filepath.Join(boot, "tcc8050"), 0o755))

	out, _, err := execute(t, "--workspace", ws, "resolve", "boot", "boot-firmware",
		"--kind", "dir", "--candidates", "tcc8059,tcc8050")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(boot, "tcc8050")+"\n", out)

	out, _, err = execute(t, "--workspace", ws, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "boot\t"+boot+"\t")

	_, _, err = execute(t, "--workspace", ws, "cache", "forget", "boot")
	require.NoError(t, err)
	out, _, err = execute(t, "--workspace", ws, "cache", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResolveMaxAge(t *testing.T) {
	ws := t.TempDir()
	rom := filepath.Join(ws, "fw.rom")
	require.NoError(t, os.WriteFile(rom, []byte("rom"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(rom, old, old))

	_, _, err := execute(t, "--workspace", ws, "resolve", "rom", "fw.rom", "--max-age", "1h")
	var stale *resolver.StaleError
	assert.ErrorAs(t, err, &stale)
}
