package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/joeycumines/behavior-engine/internal/bt"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorFailure = lipgloss.Color("#EF4444")
	colorRunning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#06B6D4")
)

// styles renders terminal output. Color is only emitted when the writer is
// a terminal, unless forced by the color mode.
type styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	running lipgloss.Style
	muted   lipgloss.Style
	accent  lipgloss.Style
	bold    lipgloss.Style
}

// newStyles creates styles for w. mode is auto, always or never.
func newStyles(w io.Writer, mode string) (*styles, error) {
	r := lipgloss.NewRenderer(w)
	switch strings.ToLower(mode) {
	case "", "auto":
	case "always":
		if r.ColorProfile() == termenv.Ascii {
			r.SetColorProfile(termenv.ANSI256)
		}
	case "never":
		r.SetColorProfile(termenv.Ascii)
	default:
		return nil, fmt.Errorf("invalid color mode: %s", mode)
	}
	return &styles{
		success: r.NewStyle().Foreground(colorSuccess),
		failure: r.NewStyle().Foreground(colorFailure).Bold(true),
		running: r.NewStyle().Foreground(colorRunning),
		muted:   r.NewStyle().Foreground(colorMuted),
		accent:  r.NewStyle().Foreground(colorAccent),
		bold:    r.NewStyle().Bold(true),
	}, nil
}

func (s *styles) status(st bt.Status) string {
	switch st {
	case bt.Success:
		return s.success.Render(st.String())
	case bt.Failure:
		return s.failure.Render(st.String())
	case bt.Running:
		return s.running.Render(st.String())
	default:
		return s.muted.Render(st.String())
	}
}
