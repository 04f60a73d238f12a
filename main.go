// ABOUTME: Entry point for the sample trigger engine
// ABOUTME: Parses CLI flags, sets up logging and runs the voices until quit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxmbed/sample-trig/internal/app"
	"github.com/maxmbed/sample-trig/internal/config"
	"github.com/maxmbed/sample-trig/internal/version"
)

var (
	configPath  = flag.String("config", "", "Config file path (yaml, toml or json)")
	logFile     = flag.String("log-file", "", "Log file path (default sample-trig.log)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, read trigger keys from stdin")
	backend     = flag.String("backend", "", "Output backend: oto, null or alsa")
	device      = flag.String("device", "", "ALSA PCM device name")
	bounce      = flag.Bool("bounce", false, "Enable rate bounce modulation")
	port        = flag.Int("port", 0, "Remote trigger port, 0 disables (default 8928)")
	noMDNS      = flag.Bool("no-mdns", false, "Do not advertise the remote trigger over mDNS")
	name        = flag.String("name", "", "mDNS service name (default: hostname-sample-trig)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <sample1> [sample2 ...]\n\n", os.Args[0])
	fmt.Fprintf(flag.CommandLine.Output(), "Keys q s d f g h trigger voices 0-5, x quits.\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	restore := func() {}
	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		var raw bool
		restore, raw = app.RawInput(os.Stdin)
		var stdout io.Writer = os.Stdout
		if raw {
			stdout = app.CRLFWriter{W: os.Stdout}
		}
		log.SetOutput(io.MultiWriter(stdout, f))
		log.Printf("Starting %s %s", version.Product, version.Version)
	}

	engine, err := app.New(app.Options{
		Config: cfg,
		Paths:  flag.Args(),
		UseTUI: useTUI,
		Name:   *name,
	})
	if err != nil {
		restore()
		log.Fatalf("Setup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = engine.Run(ctx)
	restore()
	if err != nil {
		log.Fatalf("Stopped with errors: %v", err)
	}
	log.Printf("Stopped")
}

// applyFlags layers explicitly set flags over the loaded configuration
func applyFlags(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-file":
			cfg.LogFile = *logFile
		case "backend":
			cfg.Device.Backend = *backend
		case "device":
			cfg.Device.Name = *device
		case "bounce":
			cfg.BounceEnabled = *bounce
		case "port":
			cfg.Port = *port
		case "no-mdns":
			cfg.MDNS = !*noMDNS
		}
	})
}
