package widget

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"

	"top-pick/loader"
)

// LibraryScript is the browser half of the widget: selection, display
// derivation, the visibility controller and the DOM glue. It exposes
// window.TopPick and does nothing until TopPick.boot is called.
//
//go:embed assets/widget.js
var LibraryScript string

// BootConfig is the per-instance configuration handed to TopPick.boot.
type BootConfig struct {
	ID              string  `json:"id"`
	DataURL         string  `json:"dataUrl"`
	ScrollThreshold float64 `json:"scrollThreshold"`
	Policy          string  `json:"policy"`
	Brand           string  `json:"brand"`
	Pitch           string  `json:"pitch"`
	FallbackMessage string  `json:"fallbackMessage"`
	TimeoutMS       int64   `json:"timeoutMs"`
	Collapsible     bool    `json:"collapsible"`
	CSS             string  `json:"css"`
	Shell           string  `json:"shell"`
}

// BootConfig derives the browser configuration of the instance. The data URL
// is the configured one, or DefaultDataPath resolved against scriptURL. With
// no scriptURL the path stays relative and the browser resolves it against
// the script's src.
func (w *Widget) BootConfig(scriptURL string) (BootConfig, error) {
	css, err := w.CSS()
	if err != nil {
		return BootConfig{}, err
	}
	var shell bytes.Buffer
	if err := w.Shell(&shell); err != nil {
		return BootConfig{}, err
	}

	dataURL, err := loader.ResolveDataURL(scriptURL, w.cfg.DataURL, DefaultDataPath)
	if err != nil {
		return BootConfig{}, err
	}
	return BootConfig{
		ID:              w.id,
		DataURL:         dataURL,
		ScrollThreshold: w.ctrl.Threshold(),
		Policy:          string(w.ctrl.Policy()),
		Brand:           w.copy.Brand,
		Pitch:           w.copy.Pitch,
		FallbackMessage: w.cfg.FallbackMessage,
		TimeoutMS:       w.timeout.Milliseconds(),
		Collapsible:     w.cfg.Collapsible,
		CSS:             css,
		Shell:           shell.String(),
	}, nil
}

// Script writes the library followed by the boot call for this instance.
// scriptURL is where the browser loads the script from, if known.
func (w *Widget) Script(out io.Writer, scriptURL string) error {
	cfg, err := w.BootConfig(scriptURL)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding boot config")
	}

	var b strings.Builder
	b.WriteString(LibraryScript)
	b.WriteString("\nTopPick.boot(")
	b.Write(raw)
	b.WriteString(");\n")

	_, err = io.WriteString(out, b.String())
	return errors.Wrap(err, "writing widget script")
}
