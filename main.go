// Package main provides the entry point for the Thermal Annotator desktop
// application.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"thermal-annotator/internal/app"
	"thermal-annotator/internal/config"
	"thermal-annotator/internal/version"
	"thermal-annotator/ui/mainwindow"
	"thermal-annotator/ui/prefs"
)

const appID = "io.github.thermal-annotator"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", os.Getenv("ANNOTATOR_CONFIG"), "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Info("Starting Thermal Annotator", "version", version.Version)

	if err := config.LoadEnv(*envFile); err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	st, closer, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer closer.Close()

	appState := app.NewState(cfg, st)
	defer appState.Close()
	appPrefs := prefs.Load()

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.AnnotatorTheme{})

	win := mainwindow.New(a, appState, appPrefs)

	// Handle command line arguments
	if flag.NArg() > 0 {
		win.OpenInspection(flag.Arg(0))
	} else {
		win.RestoreLastInspection()
	}

	win.ShowAndRun()
}
