// Package report writes end-of-run artifacts: the k6-style summary JSON and
// the short markdown digest posted alongside it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hotpath/internal/stats"
)

const (
	ProfileChat = "chat"
	ProfileMSA  = "msa"
)

// ExportJSON writes the summary to filename.
func ExportJSON(s *stats.Summary, filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// LoadSummary reads a summary written by ExportJSON, or a k6 handleSummary
// JSON dump, where each metric keeps its aggregates under "values". The flat
// --summary-export layout has no "values" and renders as n/a.
func LoadSummary(filename string) (*stats.Summary, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("summary file not found: %s", filename)
	}
	var s stats.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", filename, err)
	}
	return &s, nil
}

// Export writes <prefix>_summary.json and <prefix>.md and returns both paths.
func Export(s *stats.Summary, profile, prefix string) (string, string, error) {
	jsonPath := prefix + "_summary.json"
	if err := ExportJSON(s, jsonPath); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}

	md, err := Markdown(s, profile)
	if err != nil {
		return "", "", err
	}
	mdPath := prefix + ".md"
	if err := os.WriteFile(mdPath, []byte(md+"\n"), 0644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", mdPath, err)
	}
	return jsonPath, mdPath, nil
}

type line struct {
	label  string
	metric string
	key    string
}

var commonLines = []line{
	{"requests", stats.HTTPReqs, "count"},
	{"failed_rate", stats.HTTPReqFailed, "rate"},
	{"http_p95_ms", stats.HTTPReqDuration, "p(95)"},
	{"http_p99_ms", stats.HTTPReqDuration, "p(99)"},
	{"http_avg_ms", stats.HTTPReqDuration, "avg"},
}

var msaLines = []line{
	{"chat_p95_ms", "msa_chat_create_message_ms", "p(95)"},
	{"session_p95_ms", "msa_session_update_status_ms", "p(95)"},
	{"tenanthub_p95_ms", "msa_tenanthub_list_ms", "p(95)"},
}

// Markdown renders the digest for the chat or msa profile. Missing metrics
// render as n/a.
func Markdown(s *stats.Summary, profile string) (string, error) {
	profile = strings.ToLower(strings.TrimSpace(profile))

	var title string
	lines := commonLines
	switch profile {
	case ProfileChat:
		title = "k6 Chat Hotpath Summary"
	case ProfileMSA:
		title = "k6 MSA Hotpath Summary"
		lines = append(append([]line(nil), commonLines...), msaLines...)
	default:
		return "", fmt.Errorf("unknown profile %q: want chat or msa", profile)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", l.label, formatValue(s, l))
	}
	return b.String(), nil
}

// WriteMarkdown is Markdown followed by a newline to w.
func WriteMarkdown(w io.Writer, s *stats.Summary, profile string) error {
	md, err := Markdown(s, profile)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, md)
	return err
}

func formatValue(s *stats.Summary, l line) string {
	v, ok := s.Metric(l.metric, l.key)
	if !ok {
		return "n/a"
	}
	if l.key == "count" {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
