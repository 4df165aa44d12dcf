package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/autopark/internal/config"
	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/driver/sim"
	"github.com/banshee-data/autopark/internal/fsutil"
	"github.com/banshee-data/autopark/internal/monitoring"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/runlog"
	"github.com/banshee-data/autopark/internal/runstore"
	"github.com/banshee-data/autopark/internal/scanplot"
	"github.com/banshee-data/autopark/internal/serialmux"
	"github.com/banshee-data/autopark/internal/timeutil"
	"github.com/banshee-data/autopark/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tuning config JSON (defaults are built in)")
	simMode     = flag.Bool("sim", false, "Park against the simulated street instead of the serial board")
	simFast     = flag.Bool("sim-fast", false, "With -sim, run on a mock clock so the run finishes instantly")
	simGap      = flag.Float64("sim-gap", 700, "With -sim, width of the gap between the parked cars (mm)")
	simNoise    = flag.Float64("sim-noise", 0, "With -sim, standard deviation of range noise (mm)")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the controller board")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	logPath     = flag.String("log", runlog.DefaultPath, "Text run log path (empty disables)")
	dbPath      = flag.String("db", "autopark.db", "SQLite run store path (empty disables)")
	plotDir     = flag.String("plot-dir", "", "Directory for per-scan PNG plots (empty disables)")
	debugListen = flag.String("debug-listen", "", "Address for the /debug/ HTTP server, e.g. localhost:8081")
	verbose     = flag.Bool("verbose", false, "Log every scan and poll")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// runOptions is the parsed command line.
type runOptions struct {
	configPath  string
	sim         bool
	simFast     bool
	simGap      float64
	simNoise    float64
	port        string
	baud        int
	logPath     string
	dbPath      string
	plotDir     string
	debugListen string
	fs          fsutil.FileSystem
}

func optionsFromFlags() runOptions {
	return runOptions{
		configPath:  *configPath,
		sim:         *simMode,
		simFast:     *simFast,
		simGap:      *simGap,
		simNoise:    *simNoise,
		port:        *port,
		baud:        *baud,
		logPath:     *logPath,
		dbPath:      *dbPath,
		plotDir:     *plotDir,
		debugListen: *debugListen,
		fs:          fsutil.OSFileSystem{},
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, optionsFromFlags())
	if report != nil {
		log.Printf("run finished: outcome=%s scans=%d moves=%d", report.Outcome, report.Search.Scans, report.Search.Moves)
		if report.Reason != "" {
			fmt.Println(report.Reason)
		}
	}
	if err != nil {
		log.Fatalf("auto-park failed: %v", err)
	}
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// run wires the driver, recorders and debug server for one parking run.
func run(ctx context.Context, o runOptions) (*park.Report, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	opts := park.OptionsFromConfig(cfg)

	var clock timeutil.Clock = timeutil.RealClock{}
	if o.sim && o.simFast {
		clock = timeutil.NewMockClock(time.Now())
	}

	var (
		drv   driver.Driver
		admin interface{ AttachAdminRoutes(*http.ServeMux) }
	)
	if o.sim {
		street := sim.DefaultStreetParams()
		street.GapWidth = o.simGap
		simOpts := sim.DefaultOptions()
		simOpts.Street = sim.NewStreet(street)
		simOpts.Clock = clock
		simOpts.Noise = o.simNoise
		simOpts.Seed = uint64(time.Now().UnixNano())
		drv = sim.New(simOpts)
		admin = serialmux.NewDisabledSerialMux()
		log.Printf("using simulated street with a %.0f mm gap", o.simGap)
	} else {
		mux, err := serialmux.NewRealSerialMux(o.port, serialmux.PortOptions{BaudRate: o.baud})
		if err != nil {
			return nil, fmt.Errorf("failed to open controller board: %w", err)
		}
		drv = driver.NewSerialDriver(mux, driver.SerialOptions{MaxVelocity: cfg.GetMaxVelocity()})
		admin = mux
		log.Printf("using controller board on %s at %d baud", o.port, o.baud)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Printf("driver close: %v", err)
		}
	}()

	var recorders park.MultiRecorder
	if o.logPath != "" {
		recorders = append(recorders, runlog.New(o.fs, o.logPath))
	}
	var store *runstore.Store
	if o.dbPath != "" {
		store, err = runstore.Open(o.dbPath, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		defer store.Close()
		recorders = append(recorders, store)
	}
	if o.plotDir != "" {
		recorders = append(recorders, scanplot.New(o.fs, o.plotDir))
	}

	if o.debugListen != "" {
		httpMux := http.NewServeMux()
		admin.AttachAdminRoutes(httpMux)
		if store != nil {
			if err := store.AttachAdminRoutes(httpMux); err != nil {
				return nil, err
			}
		}
		shutdown := serveDebug(o.debugListen, httpMux)
		defer shutdown()
	}

	c := park.NewController(park.Config{
		Driver:   drv,
		Options:  opts,
		Clock:    clock,
		Recorder: recorders,
	})
	return c.Run(ctx)
}

// serveDebug starts the debug server in the background and returns a
// function that shuts it down.
func serveDebug(addr string, handler http.Handler) func() {
	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		log.Printf("debug server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("debug server: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("debug server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("debug server force close error: %v", err)
			}
		}
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nUsage: autopark [flags]\n\n", version.String())
		flag.PrintDefaults()
	}
}
