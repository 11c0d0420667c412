package banner

import (
	"hotpath/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
    __          __                  __  __
   / /_  ____  / /_____  ____ _____/ /_/ /_
  / __ \/ __ \/ __/ __ \/ __ '/ __/ __/ __ \
 / / / / /_/ / /_/ /_/ / /_/ / /_/ /_/ / / /
/_/ /_/\____/\__/ .___/\__,_/\__/\__/_/ /_/
               /_/                          `

// GetString renders the banner with the given tagline under it.
func GetString(tagline string) string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	out := "\n" + style.Render(ascii) + "\n"
	if tagline != "" {
		out += styles.Subtle.Render(tagline) + "\n"
	}
	return out
}
