package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparkline_Window(t *testing.T) {
	s := NewSparkline(3, "rps", "/s", lipgloss.NewStyle())
	for _, v := range []float64{10, 20, 30, 5} {
		s.Add(v)
	}

	assert.Equal(t, []float64{20, 30, 5}, s.Data)
	assert.Equal(t, 30.0, s.Max)
	assert.Equal(t, 5.0, s.Last())
}

func TestSparkline_View(t *testing.T) {
	s := NewSparkline(4, "p95", "ms", lipgloss.NewStyle())
	s.Add(0)
	s.Add(8)
	s.Add(-1)

	lines := strings.Split(s.View(), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "p95  0.0ms", lines[0])
	assert.Equal(t, " █  ", lines[1])

	assert.Empty(t, Sparkline{}.View())
}
