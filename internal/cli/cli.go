package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/hotpath"
	"hotpath/internal/metrics"
	"hotpath/internal/report"
	"hotpath/internal/runner"
	"hotpath/internal/stats"
	"hotpath/internal/storage"
	"hotpath/internal/tui/live"
	"hotpath/internal/tui/styles"
)

type Options struct {
	Scenario string
	// OutPrefix enables <prefix>_summary.json and <prefix>.md.
	OutPrefix string
	// HistoryPath is the bbolt run history; empty disables it.
	HistoryPath string
	MetricsAddr string
	Live        bool
}

// Start runs one scenario to completion and reports it. The returned summary
// is nil only when the run never started.
func Start(ctx context.Context, cfg config.RunConfig, opts Options, out io.Writer, log *zap.Logger) (*stats.Summary, error) {
	reg := stats.NewRegistry()

	if opts.MetricsAddr != "" {
		exporter := metrics.NewExporter(opts.Scenario)
		reg.SetObserver(exporter)
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := exporter.Serve(metricsCtx, opts.MetricsAddr, log); err != nil {
				log.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	client := hotpath.NewClient(hotpath.NewHTTPClient(cfg.HTTPTimeout, cfg.VUs), reg, log)
	sc, err := hotpath.New(opts.Scenario, cfg, client, log)
	if err != nil {
		return nil, err
	}

	printHeader(out, opts.Scenario, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(runner.Config{
		VUs:          cfg.VUs,
		Duration:     cfg.Duration,
		ThinkTime:    cfg.Sleep,
		GracefulStop: cfg.GracefulStop,
	}, reg, updates, log)

	done := make(chan struct{})
	var monitorDone <-chan struct{}
	if opts.Live {
		monitorDone = runLive(opts.Scenario, cfg, updates, done, cancel, out)
	} else {
		monitorDone = runProgress(cfg.Duration, updates, done, out)
	}

	res, err := r.Run(runCtx, sc)
	close(done)
	<-monitorDone
	if err != nil {
		return nil, err
	}

	summary := stats.BuildSummary(res.Scenario, reg, cfg.Thresholds, res.StartedAt, res.Elapsed)
	printSummary(out, summary, res)
	handleAutoReport(out, summary, opts)
	saveHistory(out, summary, cfg, opts, log)
	return summary, nil
}

func printHeader(out io.Writer, scenario string, cfg config.RunConfig) {
	fmt.Fprintln(out, styles.Title.Render("HOTPATH LOAD TEST · "+scenario))
	row(out, "Chat", cfg.ChatBaseURL)
	if scenario == hotpath.MSAName {
		row(out, "Session", cfg.SessionBaseURL)
		row(out, "OrgHub", cfg.OrgHubBaseURL)
		row(out, "TenantHub", cfg.TenantHubBaseURL)
	}
	row(out, "Tenant / User", cfg.TenantID+" / "+cfg.Email)
	row(out, "VUs", fmt.Sprintf("%d", cfg.VUs))
	row(out, "Duration", cfg.Duration.String())
	row(out, "Sleep", cfg.Sleep.String())
	fmt.Fprintln(out)
}

func row(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%s %s\n", styles.Label.Render(label), value)
}

// runProgress prints a one-line status until done is closed.
func runProgress(total time.Duration, updates runner.StatsUpdateChan, done <-chan struct{}, out io.Writer) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		var last runner.StatsSnapshot
		for {
			select {
			case snap := <-updates:
				last = snap
				fmt.Fprintf(out, "\r%s", progressLine(snap, total))
			case <-done:
				if last.Elapsed > 0 {
					fmt.Fprintln(out)
				}
				return
			}
		}
	}()
	return finished
}

func progressLine(s runner.StatsSnapshot, total time.Duration) string {
	pct := 1.0
	if total > 0 {
		pct = s.Elapsed.Seconds() / total.Seconds()
	}
	if pct > 1.0 {
		pct = 1.0
	}
	return fmt.Sprintf("%s %3.0f%% | %s/%s | VUs: %3d | iters: %d | reqs: %d | failed: %d | p95: %.1fms",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), total,
		s.ActiveVUs,
		s.Iterations,
		s.Requests,
		s.Failed,
		s.P95ReqMs,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// runLive drives the bubbletea view from the snapshot channel.
func runLive(scenario string, cfg config.RunConfig, updates runner.StatsUpdateChan, done <-chan struct{}, cancel func(), out io.Writer) <-chan struct{} {
	p := tea.NewProgram(live.NewModel(scenario, cfg.VUs, cfg.Duration, cancel), tea.WithOutput(out))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = p.Run()
	}()
	go func() {
		for {
			select {
			case snap := <-updates:
				p.Send(snap)
			case <-done:
				p.Send(live.DoneMsg{})
				return
			}
		}
	}()
	return finished
}

func printSummary(out io.Writer, s *stats.Summary, res *runner.Result) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("RESULTS"))
	row(out, "Duration", res.Elapsed.Round(time.Millisecond).String())
	row(out, "Room", res.Setup.RoomID)

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Heading.Render("Metrics"))
	for _, name := range metricOrder(s) {
		m := s.Metrics[name]
		row(out, name, formatValues(m))
	}

	if len(s.Checks) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Heading.Render("Checks"))
		for _, c := range s.Checks {
			line := fmt.Sprintf("%s %s", styles.Mark(c.Fails == 0), c.Name)
			fmt.Fprintf(out, "  %s %s\n", line, styles.Subtle.Render(fmt.Sprintf("(%d ✓ / %d ✗)", c.Passes, c.Fails)))
		}
	}

	if len(s.Thresholds) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Heading.Render("Thresholds"))
		for _, t := range s.Thresholds {
			detail := fmt.Sprintf("actual=%.3f", t.Actual)
			if t.Err != "" {
				detail = t.Err
			}
			fmt.Fprintf(out, "  %s %s: %s %s\n", styles.Mark(t.OK), t.Metric, t.Expr, styles.Subtle.Render(detail))
		}
	}

	fmt.Fprintln(out)
	if s.Passed {
		fmt.Fprintln(out, styles.Success.Render("all thresholds passed"))
	} else {
		fmt.Fprintln(out, styles.Error.Render("some thresholds have failed"))
	}
}

// metricOrder lists built-ins first, then custom trends by name.
func metricOrder(s *stats.Summary) []string {
	builtins := []string{stats.HTTPReqs, stats.HTTPReqFailed, stats.HTTPReqDuration, stats.Iterations, stats.Checks}
	names := make([]string, 0, len(s.Metrics))
	seen := make(map[string]bool)
	for _, n := range builtins {
		if _, ok := s.Metrics[n]; ok {
			names = append(names, n)
			seen[n] = true
		}
	}
	var custom []string
	for n := range s.Metrics {
		if !seen[n] {
			custom = append(custom, n)
		}
	}
	sort.Strings(custom)
	return append(names, custom...)
}

func formatValues(m stats.MetricSummary) string {
	var keys []string
	switch m.Type {
	case stats.TypeTrend:
		keys = []string{"avg", "min", "med", "max", "p(90)", "p(95)", "p(99)"}
	case stats.TypeRate:
		keys = []string{"rate", "passes", "fails"}
	default:
		keys = []string{"count", "rate"}
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := m.Values[k]
		if !ok {
			continue
		}
		switch {
		case k == "count" || k == "passes" || k == "fails":
			parts = append(parts, fmt.Sprintf("%s=%d", k, int64(v)))
		case m.Type == stats.TypeTrend:
			parts = append(parts, fmt.Sprintf("%s=%.2fms", k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s=%.4f", k, v))
		}
	}
	return styles.Value.Render(strings.Join(parts, " "))
}

func handleAutoReport(out io.Writer, s *stats.Summary, opts Options) {
	if opts.OutPrefix == "" {
		return
	}

	fmt.Fprintf(out, "\nGenerating reports with prefix: %s\n", opts.OutPrefix)
	jsonPath, mdPath, err := report.Export(s, opts.Scenario, opts.OutPrefix)
	if err != nil {
		fmt.Fprintln(out, styles.Error.Render("report failed: "+err.Error()))
		return
	}
	fmt.Fprintf(out, "Reports saved to %s and %s\n", jsonPath, mdPath)
}

func saveHistory(out io.Writer, s *stats.Summary, cfg config.RunConfig, opts Options, log *zap.Logger) {
	if opts.HistoryPath == "" {
		return
	}

	store, err := storage.Open(opts.HistoryPath)
	if err != nil {
		log.Warn("history unavailable", zap.String("path", opts.HistoryPath), zap.Error(err))
		return
	}
	defer store.Close()

	item := storage.HistoryItem{
		ID:        storage.NewID(),
		Scenario:  s.Scenario,
		Timestamp: s.StartedAt,
		Config:    historyConfig(opts.Scenario, cfg),
		Summary:   s,
		Passed:    s.Passed,
	}
	if err := store.Save(item); err != nil {
		log.Warn("history save failed", zap.Error(err))
		return
	}
	fmt.Fprintln(out, styles.Subtle.Render("saved as run "+item.ID))
}

func historyConfig(scenario string, cfg config.RunConfig) storage.RunConfig {
	rc := storage.RunConfig{
		VUs:      cfg.VUs,
		Duration: cfg.Duration.String(),
		SleepMs:  cfg.Sleep.Milliseconds(),
		ChatURL:  cfg.ChatBaseURL,
	}
	if scenario == hotpath.MSAName {
		rc.SessionURL = cfg.SessionBaseURL
		rc.OrgHubURL = cfg.OrgHubBaseURL
		rc.TenantURL = cfg.TenantHubBaseURL
	}
	return rc
}
