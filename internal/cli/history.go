package cli

import (
	"fmt"
	"io"
	"time"

	"hotpath/internal/report"
	"hotpath/internal/stats"
	"hotpath/internal/storage"
	"hotpath/internal/tui/styles"
)

// PrintHistory lists stored runs, newest first.
func PrintHistory(out io.Writer, items []storage.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, styles.Subtle.Render("no runs recorded yet"))
		return
	}

	fmt.Fprintln(out, styles.Title.Render("RUN HISTORY"))
	for _, it := range items {
		reqs, p95, failed := "n/a", "n/a", "n/a"
		if it.Summary != nil {
			if v, ok := it.Summary.Metric(stats.HTTPReqs, "count"); ok {
				reqs = fmt.Sprintf("%d", int64(v))
			}
			if v, ok := it.Summary.Metric(stats.HTTPReqDuration, "p(95)"); ok {
				p95 = fmt.Sprintf("%.1fms", v)
			}
			if v, ok := it.Summary.Metric(stats.HTTPReqFailed, "rate"); ok {
				failed = fmt.Sprintf("%.2f%%", v*100)
			}
		}
		fmt.Fprintf(out, "%s %s  %-4s  vus=%-4d %-8s reqs=%-8s p95=%-10s failed=%s\n",
			styles.Mark(it.Passed),
			styles.Subtle.Render(it.ID),
			it.Scenario,
			it.Config.VUs,
			it.Config.Duration,
			reqs, p95, failed,
		)
	}
}

// PrintRun shows one stored run with its markdown digest.
func PrintRun(out io.Writer, it *storage.HistoryItem) error {
	fmt.Fprintln(out, styles.Title.Render("RUN "+it.ID))
	row(out, "Scenario", it.Scenario)
	row(out, "Started", it.Timestamp.Format(time.RFC3339))
	row(out, "VUs / Duration", fmt.Sprintf("%d / %s", it.Config.VUs, it.Config.Duration))
	row(out, "Chat", it.Config.ChatURL)
	if it.Config.OrgHubURL != "" {
		row(out, "Session", it.Config.SessionURL)
		row(out, "OrgHub", it.Config.OrgHubURL)
		row(out, "TenantHub", it.Config.TenantURL)
	}
	row(out, "Passed", styles.Mark(it.Passed))
	fmt.Fprintln(out)

	if it.Summary == nil {
		return nil
	}
	return report.WriteMarkdown(out, it.Summary, it.Scenario)
}
