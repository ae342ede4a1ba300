package widget

import (
	"bytes"
	"html/template"
	"io"
	texttemplate "text/template"

	"github.com/pkg/errors"

	"top-pick/config"
	"top-pick/models"
	"top-pick/visibility"
)

// Every rule is prefixed with the instance id so host page styles and other
// instances are left alone.
var cssTemplate = texttemplate.Must(texttemplate.New("css").Parse(`
#{{.ID}} {
  position: fixed;
  {{- if eq .Anchor "center"}}
  top: 50%;
  transform: translate(110%, -50%);
  {{- else}}
  top: {{.TopOffset}}px;
  transform: translateX(110%);
  max-height: calc(100vh - {{.DoubleOffset}}px);
  {{- end}}
  right: 0;
  width: {{.Width}}px;
  background: {{.Theme.Background}};
  border-left: 1px solid {{.Theme.Border}};
  padding: 15px;
  box-shadow: -2px 0 5px rgba(0,0,0,0.1);
  line-height: 1.5;
  z-index: 10000;
  overflow-y: auto;
  font-family: {{.Theme.FontFamily}};
  transition: transform 0.3s ease;
}
#{{.ID}}.tp-shown { transform: {{if eq .Anchor "center"}}translate(0, -50%){{else}}none{{end}}; }
#{{.ID}} h2 { margin-top: 0; font-size: 18px; color: {{.Theme.Text}}; }
#{{.ID}} .tp-close { position: absolute; top: 6px; right: 8px; border: 0; background: none; font-size: 18px; cursor: pointer; color: {{.Theme.Muted}}; }
#{{.ID}} .logo { display: block; max-height: 40px; margin-bottom: 10px; }
#{{.ID}} .logo[hidden] { display: none; }
#{{.ID}} .company-name { font-weight: bold; font-size: 16px; }
#{{.ID}} .full-name { font-size: 14px; color: {{.Theme.Muted}}; }
#{{.ID}} .rank { color: #555; margin: 10px 0; }
#{{.ID}} .price { font-size: 13px; color: {{.Theme.Muted}}; }
#{{.ID}} .description { font-size: 14px; color: #444; }
#{{.ID}} .custom-description { font-size: 13px; color: #444; margin-top: 10px; }
#{{.ID}} .tp-fallback { font-size: 14px; color: {{.Theme.Muted}}; }
#{{.ID}} .cta-button {
  display: block;
  width: 100%;
  padding: 12px 0;
  margin-top: 10px;
  text-align: center;
  font-weight: 600;
  color: #fff;
  background-color: {{.Theme.Accent}};
  border-radius: 4px;
  text-decoration: none;
  box-shadow: 0 2px 4px rgba(0,0,0,0.15);
  transition: background-color 0.2s ease;
}
#{{.ID}} .cta-button:hover { background-color: {{.Theme.AccentHover}}; }
#{{.ID}}-toggle {
  position: fixed;
  right: 0;
  {{- if eq .Anchor "center"}}
  top: 50%;
  {{- else}}
  top: {{.TopOffset}}px;
  {{- end}}
  z-index: 9999;
  padding: 8px 10px;
  border: 1px solid {{.Theme.Border}};
  border-right: 0;
  border-radius: 4px 0 0 4px;
  background: {{.Theme.Accent}};
  color: #fff;
  font-family: {{.Theme.FontFamily}};
  cursor: pointer;
}
#{{.ID}}-toggle.tp-collapsed { padding: 8px 2px; width: 8px; overflow: hidden; color: transparent; }
#{{.ID}}-toggle .tp-collapse { margin-left: 6px; border: 0; background: none; color: inherit; cursor: pointer; }
`))

var fragmentTemplate = template.Must(template.New("fragment").Parse(
	`<aside id="{{.ID}}" class="top-pick{{if .Shown}} tp-shown{{end}}" data-state="{{.State}}">` +
		`<button type="button" class="tp-close" aria-label="Close">&times;</button>` +
		`<h2>{{.Heading}}</h2>` +
		`{{if .Fallback}}<p class="tp-fallback">{{.Message}}</p>` +
		`{{else}}` +
		`<img class="logo" src="{{.Display.LogoURL}}" alt="{{.Display.LogoAlt}}"{{if not .Display.HasLogo}} hidden{{end}}>` +
		`<div class="company-name">{{.Display.Ticker}}</div>` +
		`<div class="full-name">{{.Display.FullName}}</div>` +
		`<div class="rank">{{.Display.RankLabel}}</div>` +
		`<div class="price"{{if not .Display.Price}} hidden{{end}}>{{with .Display.Price}}Last price: {{.}}{{end}}</div>` +
		`<p class="description">{{.Display.Marketing}}</p>` +
		`<p class="custom-description">{{.Display.Description}}</p>` +
		`<a class="cta-button" href="{{.CTAURL}}" target="_top" rel="noopener noreferrer">{{.CTALabel}}</a>` +
		`{{end}}` +
		`</aside>` +
		`<button type="button" id="{{.ID}}-toggle" class="tp-toggle{{if .Collapsed}} tp-collapsed{{end}}">Top pick` +
		`{{if .Collapsible}}<span class="tp-collapse" role="button" aria-label="Collapse">&minus;</span>{{end}}` +
		`</button>`))

type cssData struct {
	ID           string
	Anchor       string
	TopOffset    int
	DoubleOffset int
	Width        int
	Theme        config.Theme
}

type fragmentData struct {
	ID          string
	State       string
	Shown       bool
	Collapsed   bool
	Collapsible bool
	Heading     string
	Fallback    bool
	Message     string
	Display     models.DisplayFields
	CTAURL      string
	CTALabel    string
}

// CSS returns the scoped style rules of the instance.
func (w *Widget) CSS() (string, error) {
	def := config.DefaultWidget()
	theme := w.cfg.Theme
	fill(&theme.Background, def.Theme.Background)
	fill(&theme.Border, def.Theme.Border)
	fill(&theme.Text, def.Theme.Text)
	fill(&theme.Muted, def.Theme.Muted)
	fill(&theme.Accent, def.Theme.Accent)
	fill(&theme.AccentHover, def.Theme.AccentHover)
	fill(&theme.FontFamily, def.Theme.FontFamily)

	width := w.cfg.Width
	if width <= 0 {
		width = def.Width
	}

	var buf bytes.Buffer
	err := cssTemplate.Execute(&buf, cssData{
		ID:           w.id,
		Anchor:       w.cfg.AnchorPosition,
		TopOffset:    w.cfg.TopOffset,
		DoubleOffset: 2 * w.cfg.TopOffset,
		Width:        width,
		Theme:        theme,
	})
	if err != nil {
		return "", errors.Wrap(err, "rendering widget css")
	}
	return buf.String(), nil
}

func fill(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Render writes the sidebar with its current display, or the fallback
// message, preceded by its style block.
func (w *Widget) Render(out io.Writer) error {
	snap := w.Snapshot()
	return w.render(out, snap, true)
}

// Shell writes the empty sidebar markup the browser script fills in.
func (w *Widget) Shell(out io.Writer) error {
	return w.render(out, Snapshot{ID: w.id, Visibility: visibility.StateHidden.String()}, false)
}

func (w *Widget) render(out io.Writer, snap Snapshot, withStyle bool) error {
	if withStyle {
		css, err := w.CSS()
		if err != nil {
			return err
		}
		if err := styleTemplate.Execute(out, template.CSS(css)); err != nil {
			return errors.Wrap(err, "rendering widget style")
		}
	}

	heading := w.cfg.Heading
	if heading == "" {
		heading = config.DefaultWidget().Heading
	}
	label := w.cfg.CTALabel
	if label == "" {
		label = config.DefaultWidget().CTALabel
	}
	cta := w.cfg.CTAURL
	if cta == "" {
		cta = config.DefaultWidget().CTAURL
	}

	err := fragmentTemplate.Execute(out, fragmentData{
		ID:          w.id,
		State:       snap.Visibility,
		Shown:       snap.Visibility == visibility.StateShown.String(),
		Collapsed:   snap.Visibility == visibility.StateCollapsed.String(),
		Collapsible: w.cfg.Collapsible,
		Heading:     heading,
		Fallback:    snap.Fallback,
		Message:     snap.Message,
		Display:     snap.Display,
		CTAURL:      cta,
		CTALabel:    label,
	})
	return errors.Wrap(err, "rendering widget")
}

var styleTemplate = template.Must(template.New("style").Parse(`<style>{{.}}</style>`))
