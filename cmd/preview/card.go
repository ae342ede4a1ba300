package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"top-pick/config"
	"top-pick/models"
	"top-pick/visibility"
)

// card is a terminal Surface. It keeps the last projection and renders it
// on demand.
type card struct {
	heading string
	cta     string
	width   int

	frame   lipgloss.Style
	title   lipgloss.Style
	ticker  lipgloss.Style
	muted   lipgloss.Style
	button  lipgloss.Style
	stateSt lipgloss.Style

	display  models.DisplayFields
	shown    bool
	fallback string
	state    visibility.State
}

func newCard(cfg config.Widget) *card {
	width := cfg.Width / 6 // roughly px per terminal cell
	if width < 40 {
		width = 40
	}
	th := cfg.Theme
	return &card{
		heading: cfg.Heading,
		cta:     cfg.CTALabel + " " + cfg.CTAURL,
		width:   width,
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(th.Border)).
			Padding(0, 1).
			Width(width),
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(th.Text)),
		ticker:  lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(th.Muted)),
		button:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color(th.Accent)).Padding(0, 1),
		stateSt: lipgloss.NewStyle().Faint(true),
	}
}

func (c *card) ApplyDisplay(d models.DisplayFields) {
	c.display = d
	c.shown = true
	c.fallback = ""
}

func (c *card) ShowFallback(message string) { c.fallback = message }

func (c *card) SetVisibility(s visibility.State) { c.state = s }

func (c *card) View() string {
	inner := c.width - 2
	var b strings.Builder
	b.WriteString(c.title.Render(c.heading))
	b.WriteString("\n\n")

	switch {
	case c.fallback != "":
		b.WriteString(c.muted.Render(c.fallback))
	case c.shown:
		d := c.display
		b.WriteString(c.ticker.Render(d.Ticker))
		b.WriteString("\n")
		b.WriteString(c.muted.Render(d.FullName))
		b.WriteString("\n\n")
		b.WriteString(d.RankLabel)
		if d.Price != "" {
			b.WriteString("\n")
			b.WriteString(c.muted.Render("Last price: " + d.Price))
		}
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(inner).Render(d.Marketing))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(inner).Render(d.Description))
		if d.HasLogo() {
			b.WriteString("\n")
			b.WriteString(c.muted.Render("logo: " + d.LogoURL))
		}
	default:
		b.WriteString(c.muted.Render("loading…"))
	}
	b.WriteString("\n\n")
	b.WriteString(c.button.Render(c.cta))

	return lipgloss.JoinVertical(lipgloss.Left,
		c.frame.Render(b.String()),
		c.stateSt.Render("state: "+c.state.String()),
	)
}
