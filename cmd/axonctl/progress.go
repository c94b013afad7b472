package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/workflow"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	detailStyle  = lipgloss.NewStyle().Faint(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type eventMsg struct{ ev workflow.Event }

type eventsClosedMsg struct{}

func listenForEvents(ch <-chan workflow.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

type progressModel struct {
	title   string
	spinner spinner.Model
	events  <-chan workflow.Event
	cancel  context.CancelFunc

	steps   []string
	status  string
	done    bool
	aborted bool
}

func newProgressModel(title string, events <-chan workflow.Event, cancel context.CancelFunc) progressModel {
	return progressModel{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		events:  events,
		cancel:  cancel,
		status:  "resolving",
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenForEvents(m.events))
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// Keep rendering until the launch reports its cancelled outcome.
			if !m.aborted {
				m.aborted = true
				m.status = "cancelling"
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		step, status := describe(msg.ev)
		if step != "" {
			m.steps = append(m.steps, step)
		}
		if status != "" {
			m.status = status
		}
		return m, listenForEvents(m.events)

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for _, s := range m.steps {
		b.WriteString("  ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), waitingStyle.Render(m.status)))
	}
	return b.String()
}

// describe renders a finished step line and the next status for ev.
func describe(ev workflow.Event) (step, status string) {
	switch e := ev.(type) {
	case workflow.CacheHitEvent:
		return stepStyle.Render("✔ cached ") + e.Key + detailStyle.Render(" "+e.Path), "launching"
	case workflow.ResolvedEvent:
		return stepStyle.Render("✔ found ") + e.Key + detailStyle.Render(" "+e.Path), "launching"
	case workflow.TranslatedEvent:
		rule := e.Rule
		if rule == "" {
			rule = "separators"
		}
		return stepStyle.Render("✔ translated ") + e.Out + detailStyle.Render(" ("+rule+")"), ""
	case workflow.LaunchedEvent:
		return stepStyle.Render("✔ started ") + e.Target.String() + detailStyle.Render(" "+e.TaskID), ""
	case workflow.WaitingEvent:
		if e.Target == launcher.OutOfBandDetached {
			return "", "waiting for completion marker"
		}
		return "", "waiting for process to exit"
	case workflow.FinishedEvent:
		line := fmt.Sprintf("%s after %s", e.Outcome, e.Duration.Round(time.Millisecond))
		if e.Outcome == launcher.OutcomeSucceeded || e.Outcome == launcher.OutcomeCompleted {
			return stepStyle.Render("✔ " + line), ""
		}
		return failedStyle.Render("✘ " + line), ""
	default:
		return "", ""
	}
}

// withProgress runs fn, feeding its events to a spinner view on stderr when
// --progress is set.
func (a *app) withProgress(ctx context.Context, title string, fn func(context.Context, chan<- workflow.Event) (launcher.Result, error)) (launcher.Result, error) {
	if !a.progress {
		return fn(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res launcher.Result
		err error
	}
	events := make(chan workflow.Event, 8)
	results := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx, events)
		close(events)
		results <- outcome{res, err}
	}()

	p := tea.NewProgram(newProgressModel(title, events, cancel), tea.WithOutput(a.stderr))
	if _, err := p.Run(); err != nil {
		a.logger.Debug("progress view unavailable", zap.Error(err))
		for range events {
		}
	}

	out := <-results
	return out.res, out.err
}
