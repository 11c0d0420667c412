package live

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hotpath/internal/runner"
	"hotpath/internal/tui/components"
	"hotpath/internal/tui/styles"
)

// DoneMsg tells the view the run has finished.
type DoneMsg struct{}

type Model struct {
	Scenario string
	VUs      int
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	Duration    time.Duration
	LastElapsed time.Duration
	LastReqs    uint64

	Width  int
	Height int

	// Stopped is set when the user aborted the run.
	Stopped bool
	cancel  func()
}

// NewModel builds the live view; cancel is invoked when the user quits
// before the run ends.
func NewModel(scenario string, vus int, total time.Duration, cancel func()) Model {
	return Model{
		Scenario:    scenario,
		VUs:         vus,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS", "/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "http_req_duration p(95)", "ms", styles.Warn),
		Duration:    total,
		cancel:      cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		dt := (msg.Elapsed - m.LastElapsed).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}
		var delta uint64
		if msg.Requests > m.LastReqs {
			delta = msg.Requests - m.LastReqs
		}
		m.RpsLine.Add(float64(delta) / dt)
		m.LatencyLine.Add(msg.P95ReqMs)

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastElapsed = msg.Elapsed

		pct := 1.0
		if m.Duration > 0 {
			pct = float64(msg.Elapsed) / float64(m.Duration)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		return m, m.Progress.SetPercent(pct)

	case DoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Stopped = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render(fmt.Sprintf("%s · %d VUs · %s", m.Scenario, m.VUs, m.Duration)))
	s.WriteString("\n\n")

	reqs := m.Stats.Requests
	errRate := 0.0
	if reqs > 0 {
		errRate = float64(m.Stats.Failed) / float64(reqs) * 100
	}

	errStyle := styles.Active
	if errRate > 5.0 {
		errStyle = styles.Error
	} else if errRate > 1.0 {
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("REQ: %d\nITER: %d", reqs, m.Stats.Iterations)
	col2 := fmt.Sprintf("FAILED: %.2f%%\nVUs: %d", errRate, m.Stats.ActiveVUs)
	col3 := fmt.Sprintf("CHECKS ✓ %d\nCHECKS ✗ %d", m.Stats.ChecksPassed, m.Stats.ChecksFailed)

	checkStyle := styles.Active
	if m.Stats.ChecksFailed > 0 {
		checkStyle = styles.Warn
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errStyle.Render(col2)),
		styles.Box.Render(checkStyle.Render(col3)),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf("p(95): %.2f ms  |  p(99): %.2f ms  |  elapsed: %s",
		m.Stats.P95ReqMs, m.Stats.P99ReqMs, m.Stats.Elapsed.Round(time.Second))
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")

	if trends := trendLines(m.Stats.TrendP95); trends != "" {
		s.WriteString(styles.Box.Render(trends))
		s.WriteString("\n\n")
	}

	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")
	s.WriteString(styles.RenderKey("q", "stop run"))
	s.WriteString("\n")

	return s.String()
}

// trendLines lists p(95) of the scenario's own trends; http_req_duration is
// already shown above.
func trendLines(p95 map[string]float64) string {
	names := make([]string, 0, len(p95))
	for name := range p95 {
		if name != "http_req_duration" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s p(95): %.2f ms", name, p95[name]))
	}
	return strings.Join(lines, "\n")
}
