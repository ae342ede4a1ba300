package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"top-pick/api"
	"top-pick/config"
	"top-pick/credentials"
	"top-pick/loader"
	"top-pick/quotes"
	"top-pick/search"
	"top-pick/widget"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	defaultConfig := os.Getenv("TOPPICK_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to the YAML configuration")
	flag.Parse()

	log := logrus.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(log, cfg)

	source := newSource(cfg, log)

	// Initialize Search Engine
	var engine search.Engine
	switch cfg.Search.Engine {
	case "memory":
		engine = search.NewInMemoryEngine(nil)
	default:
		be, err := search.NewBleveEngine(nil, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize search engine")
		}
		defer be.Close()
		engine = be
	}

	opts := []widget.Option{
		widget.WithLogger(log),
		widget.WithIndex(engine),
		widget.WithTimeout(cfg.Data.Timeout),
	}
	if cfg.Quotes.Enabled {
		opts = append(opts, widget.WithQuoter(quotes.NewYahooQuoter(cfg.Quotes.Suffix)))
	}
	w, err := widget.New(source, cfg.Widget, opts...)
	if err != nil {
		log.WithError(err).Fatal("Failed to create widget")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx, cfg.Data.RefreshInterval)

	handler := api.NewHandler(w, engine, source, log)
	handler.StaticDir = cfg.Server.StaticDir

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Shutdown did not complete")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":   cfg.Server.Addr,
		"widget": w.ID(),
		"engine": cfg.Search.Engine,
	}).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Server stopped")
}

func setupLogging(log *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.WithError(err).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}

// newSource prefers the remote holdings endpoint and falls back to the
// local file.
func newSource(cfg *config.Config, log *logrus.Logger) loader.Source {
	if cfg.Data.URL == "" {
		log.WithField("file", cfg.Data.File).Info("Serving holdings from file")
		return loader.FileSource{Path: cfg.Data.File}
	}

	breaker := loader.NewBreaker(loader.DefaultBreakerConfig("holdings"), log)
	log.WithField("url", cfg.Data.URL).Info("Fetching holdings over HTTP")
	return loader.NewHTTPSource(loader.HTTPConfig{
		URL:        cfg.Data.URL,
		Timeout:    cfg.Data.Timeout,
		MaxRetries: cfg.Data.MaxRetries,
		BaseDelay:  cfg.Data.BackoffBase,
		MaxDelay:   cfg.Data.BackoffMax,
		UserAgent:  "top-pick/1.0",
	}, log, loader.WithBreaker(breaker), loader.WithCredentials(credentials.NewEnvProvider()))
}
