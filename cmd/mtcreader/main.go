package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dbehnke/mtcreader/internal/config"
	"github.com/dbehnke/mtcreader/internal/database"
	"github.com/dbehnke/mtcreader/internal/engine"
	"github.com/dbehnke/mtcreader/internal/journal"
	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/relay"
)

const (
	VERSION = "1.0.0"

	SUBSCRIBER_BUFFER = 1024
	STATUS_INTERVAL   = 30 * time.Second
)

func main() {
	var (
		configFile = flag.String("config", getDefaultConfig(), "Configuration file path")
		port       = flag.Uint("port", 0, "Override the listen port")
		address    = flag.String("address", "", "Override the listen address")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("MTC Reader v%s\n", VERSION)
		return
	}

	// Handle non-flag arguments (config file)
	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	cfg := config.NewConfig(*configFile)
	if err := cfg.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		if err := cfg.SetPort(uint32(*port)); err != nil {
			log.Fatalf("Invalid -port: %v", err)
		}
	}
	if *address != "" {
		if err := cfg.SetAddress(*address); err != nil {
			log.Fatalf("Invalid -address: %v", err)
		}
	}
	if *debug {
		cfg.SetLogDebug(true)
	}

	logOut, closeLog, err := openLogOutput(cfg.GetLogFilePath())
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()

	log.SetOutput(logOut)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("MTC Reader v%s starting with config: %s", VERSION, *configFile)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logOut, os.Stdout); err != nil {
		log.Fatalf("Reader error: %v", err)
	}

	log.Printf("MTC Reader stopped")
}

// run wires the engine to its subscribers and blocks until ctx is done or
// a component fails
func run(ctx context.Context, cfg *config.Config, logOut io.Writer, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	opts := engineOptions(cfg)
	if err := opts.Validate(); err != nil {
		return err
	}

	reader := engine.New(opts, log.New(logOut, "[MTC] ", log.LstdFlags), m)

	var writer *journal.Writer
	if cfg.GetJournalEnabled() {
		db, err := database.NewDB(database.Config{Path: cfg.GetJournalPath()}, log.New(logOut, "[DB] ", log.LstdFlags))
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer db.Close()

		writer = journal.NewWriter(
			database.NewTimecodeRepository(db.GetDB()),
			log.New(logOut, "[JOURNAL] ", log.LstdFlags),
			m,
			journal.Config{
				BatchSize:     int(cfg.GetJournalBatchSize()),
				FlushInterval: time.Duration(cfg.GetJournalFlushInterval()) * time.Millisecond,
				Retention:     time.Duration(cfg.GetJournalRetention()) * time.Hour,
			},
		)
	}

	var forwarder *relay.Relay
	if cfg.GetRelayEnabled() {
		r, err := relay.New(cfg.GetRelayAddress(), int(cfg.GetRelayPort()), log.New(logOut, "[RELAY] ", log.LstdFlags), m)
		if err != nil {
			return err
		}
		forwarder = r
	}

	g, ctx := errgroup.WithContext(ctx)

	// Subscribe before Run so the listening event is seen
	events, unsubscribe := reader.Subscribe(SUBSCRIBER_BUFFER)
	defer unsubscribe()
	g.Go(func() error {
		return printEvents(ctx, events, out, log.Default())
	})

	if writer != nil {
		journalEvents, unsubscribeJournal := reader.Subscribe(SUBSCRIBER_BUFFER)
		defer unsubscribeJournal()
		g.Go(func() error {
			return writer.Run(ctx, journalEvents)
		})
	}

	if forwarder != nil {
		relayEvents, unsubscribeRelay := reader.Subscribe(SUBSCRIBER_BUFFER)
		defer unsubscribeRelay()
		g.Go(func() error {
			return forwarder.Run(ctx, relayEvents)
		})
	}

	if cfg.GetMetricsEnabled() {
		srv := metrics.NewServer(cfg.GetMetricsAddress(), reg, statusFunc(reader), log.New(logOut, "[METRICS] ", log.LstdFlags))
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	g.Go(func() error {
		return reader.Run(ctx)
	})

	g.Go(func() error {
		reportStatus(ctx, reader)
		return nil
	})

	return g.Wait()
}

// engineOptions maps the configuration file onto engine options
func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		InterfaceAddress:   cfg.GetAddress(),
		Port:               int(cfg.GetPort()),
		MTCOnly:            cfg.GetMTCOnly(),
		UseHeartbeat:       cfg.GetHeartbeatEnabled(),
		UseFreewheel:       cfg.GetFreewheelEnabled(),
		FreewheelTolerance: time.Duration(cfg.GetFreewheelTolerance()) * time.Millisecond,
		FreewheelFrames:    int(cfg.GetFreewheelFrames()),
		HeartbeatInterval:  time.Duration(cfg.GetHeartbeatInterval()) * time.Millisecond,
		AutoFramerate:      cfg.GetAutoFramerate(),
		CurrentFramerate:   int(cfg.GetFramerate()),
		Debug:              cfg.GetLogDebug(),
	}
}

func statusFunc(reader *engine.Engine) metrics.StatusFunc {
	return func() map[string]interface{} {
		return map[string]interface{}{
			"running":   reader.IsRunning(),
			"transport": reader.TransportState().String(),
			"framerate": reader.CurrentFramerate(),
			"port":      reader.Port(),
		}
	}
}

// reportStatus provides periodic status updates
func reportStatus(ctx context.Context, reader *engine.Engine) {
	ticker := time.NewTicker(STATUS_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Status: transport=%s, framerate=%d, freewheeling=%v",
				reader.TransportState(), reader.CurrentFramerate(), reader.Freewheeling())
		}
	}
}

// openLogOutput returns stderr, teed into path when one is configured
func openLogOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(os.Stderr, file), func() { file.Close() }, nil
}

// getDefaultConfig returns the default configuration file path
func getDefaultConfig() string {
	// Check for config file in current directory first
	if _, err := os.Stat("mtcreader.ini"); err == nil {
		return "mtcreader.ini"
	}

	// Check system location
	systemConfig := "/etc/mtcreader.ini"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig
	}

	return "mtcreader.ini"
}
