package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one-row scrolling chart over the last Width samples.
type Sparkline struct {
	Data  []float64
	Width int
	Max   float64
	Style lipgloss.Style
	Label string
	// Unit is appended to the latest value in the label row.
	Unit string
}

func NewSparkline(width int, label, unit string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Unit:  unit,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(val float64) {
	if val < 0 {
		val = 0
	}
	s.Data = append(s.Data, val)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}

	// scale to the visible window
	s.Max = 0
	for _, v := range s.Data {
		if v > s.Max {
			s.Max = v
		}
	}
}

func (s Sparkline) Last() float64 {
	if len(s.Data) == 0 {
		return 0
	}
	return s.Data[len(s.Data)-1]
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	out := strings.Builder{}
	out.WriteString(s.Style.Render(fmt.Sprintf("%s  %.1f%s", s.Label, s.Last(), s.Unit)))
	out.WriteString("\n")

	var graph strings.Builder
	data := s.Data
	if len(data) > s.Width {
		data = data[len(data)-s.Width:]
	}
	for _, v := range data {
		graph.WriteString(levels[s.level(v)])
	}
	if pad := s.Width - len(data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return out.String() + s.Style.Render(graph.String())
}

func (s Sparkline) level(v float64) int {
	if s.Max <= 0 {
		return 0
	}
	idx := int(v / s.Max * float64(len(levels)-1))
	if idx < 0 {
		return 0
	}
	if idx >= len(levels) {
		return len(levels) - 1
	}
	return idx
}
