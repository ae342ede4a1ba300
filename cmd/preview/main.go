// Command preview renders the top pick of a local holdings file as a
// terminal card, without a browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"top-pick/config"
	"top-pick/loader"
	"top-pick/quotes"
	"top-pick/widget"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	dataFile := flag.String("data", "", "holdings file (defaults to data.file from the config)")
	progress := flag.Float64("progress", 1, "scroll progress to evaluate, 0..1")
	withQuote := flag.Bool("quote", false, "look up the last price")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	path := cfg.Data.File
	if *dataFile != "" {
		path = *dataFile
	}

	c := newCard(cfg.Widget)
	opts := []widget.Option{widget.WithLogger(log), widget.WithSurface(c)}
	if *withQuote {
		opts = append(opts, widget.WithQuoter(quotes.NewYahooQuoter(cfg.Quotes.Suffix)))
	}
	w, err := widget.New(loader.FileSource{Path: path}, cfg.Widget, opts...)
	if err != nil {
		log.WithError(err).Fatal("Failed to create widget")
	}

	w.Mount(*progress)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Data.Timeout+5*time.Second)
	defer cancel()
	refreshErr := w.Refresh(ctx)

	fmt.Println(c.View())
	if refreshErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", widget.Category(refreshErr), refreshErr)
		os.Exit(1)
	}
}
