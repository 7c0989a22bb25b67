package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ytcmd/internal/jobs"
	"ytcmd/internal/ytdlp"
)

const visibleLogLines = 8

type jobEventMsg jobs.Event

type runStartErrMsg struct {
	err error
}

type runModel struct {
	job     *jobs.Job
	events  <-chan jobs.Event
	spinner spinner.Model
	bar     progress.Model

	logs       []string
	status     ytdlp.Status
	percent    float64
	width      int
	done       bool
	success    bool
	cancelling bool
	startErr   error
}

func newRunModel(job *jobs.Job, events <-chan jobs.Event) runModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return runModel{
		job:     job,
		events:  events,
		spinner: sp,
		bar:     bar,
		status:  ytdlp.NewStatus(),
	}
}

func waitForEvent(events <-chan jobs.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return jobEventMsg(e)
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clampInt(msg.Width-20, 20, 80)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done || m.cancelling {
				return m, tea.Quit
			}
			m.cancelling = true
			_ = m.job.Cancel()
			return m, nil
		}
		return m, nil
	case runStartErrMsg:
		m.startErr = msg.err
		return m, waitForEvent(m.events)
	case jobEventMsg:
		switch msg.Kind {
		case jobs.EventLog:
			m.status = ytdlp.ParseStatus(m.status, msg.Log)
			m.logs = append(m.logs, msg.Log)
			if len(m.logs) > visibleLogLines {
				m.logs = m.logs[len(m.logs)-visibleLogLines:]
			}
		case jobs.EventProgress:
			m.percent = msg.Progress
		case jobs.EventComplete:
			m.done = true
			m.success = msg.Success
			if m.success {
				m.percent = 100
			}
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m runModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ytcmd run"))
	b.WriteString("\n")
	width := m.width
	if width <= 0 {
		width = 100
	}
	b.WriteString(commandStyle.Render(truncateRunes(firstLine(m.job.Command()), width-4)))
	b.WriteString("\n\n")

	switch {
	case m.done && m.success:
		b.WriteString(okStyle.Render("done "))
	case m.done:
		b.WriteString(errorStyle.Render("failed "))
	case m.cancelling:
		b.WriteString(mutedStyle.Render("cancelling "))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(m.bar.ViewAs(m.percent / 100))
	b.WriteString(fmt.Sprintf(" %5.1f%%\n", m.percent))
	if !m.done {
		b.WriteString(mutedStyle.Render(m.status.String()))
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		lines := make([]string, 0, len(m.logs))
		for _, l := range m.logs {
			lines = append(lines, truncateRunes(l, width-6))
		}
		b.WriteString(panelStyle.Render(mutedStyle.Render(strings.Join(lines, "\n"))))
		b.WriteString("\n")
	}
	if m.startErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.startErr.Error()))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString(mutedStyle.Render("ctrl+c to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
