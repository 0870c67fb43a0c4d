package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/banshee-data/rockfall/internal/api"
	"github.com/banshee-data/rockfall/internal/app"
	"github.com/banshee-data/rockfall/internal/config"
	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/db"
	"github.com/banshee-data/rockfall/internal/input"
	"github.com/banshee-data/rockfall/internal/report"
	"github.com/banshee-data/rockfall/internal/surface"
	"github.com/banshee-data/rockfall/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a simulation config JSON file (defaults built in)")
	jetsPath    = flag.String("jets", "", "Path to the jet pattern file of '<' and '>'")
	piecesPath  = flag.String("pieces", "", "Path to piece drawings separated by blank lines (overrides config pieces)")
	dropsList   = flag.String("drops", "2022,1000000000000", "Comma-separated drop counts to answer")
	direct      = flag.Bool("direct", false, "Simulate every piece instead of extrapolating")
	verify      = flag.Bool("verify", true, "Check extrapolated heights against direct simulation when small enough")
	dbPath      = flag.String("db", "", "SQLite database recording runs (disabled when empty)")
	plotDir     = flag.String("plot-dir", "", "Directory for height and gain PNG plots of the last run")
	chartPath   = flag.String("chart", "", "Write an HTML chart of the last run to this file")
	copyHeight  = flag.Bool("copy", false, "Copy the last height to the clipboard")
	listen      = flag.String("listen", "", "Serve the HTTP API on this address instead of answering once")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	var database *db.DB
	if *dbPath != "" {
		var err error
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
	}

	if *listen != "" {
		if err := serve(*listen, database); err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	cfg, err := loadConfig(*configPath, *piecesPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *jetsPath == "" {
		log.Fatal("-jets is required")
	}
	text, err := input.ReadFile(*jetsPath)
	if err != nil {
		log.Fatalf("failed to read jets: %v", err)
	}
	imp, err := input.ParseImpulses(text)
	if err != nil {
		log.Fatalf("failed to parse jets: %v", err)
	}
	drops, err := input.ParseCSVUint64s(*dropsList)
	if err != nil {
		log.Fatalf("invalid -drops: %v", err)
	}
	if len(drops) == 0 {
		log.Fatal("-drops must list at least one drop count")
	}

	var store *db.RunStore
	if database != nil {
		store = db.NewRunStore(database.DB)
	}
	out, err := app.NewRunner(store, nil).Run(app.Request{
		Config:   cfg,
		Impulses: imp,
		Drops:    drops,
		Direct:   *direct,
		Verify:   *verify,
	})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	printOutcomes(os.Stdout, out)

	last := out[len(out)-1]
	if err := writeArtifacts(last, *plotDir, *chartPath); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	if *copyHeight {
		if err := clipboard.WriteAll(strconv.FormatUint(last.Height, 10)); err != nil {
			log.Printf("failed to copy height to clipboard: %v", err)
		}
	}
}

// loadConfig reads the config file if one is named, otherwise the built-in
// defaults, and replaces its pieces with the drawings in piecesFile.
func loadConfig(path, piecesFile string) (*config.SimulationConfig, error) {
	cfg := config.DefaultSimulationConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadSimulationConfig(path); err != nil {
			return nil, err
		}
	}
	if piecesFile != "" {
		text, err := input.ReadFile(piecesFile)
		if err != nil {
			return nil, err
		}
		if _, err := input.ParseRepertoire(text); err != nil {
			return nil, fmt.Errorf("%s: %w", piecesFile, err)
		}
		cfg.Pieces = input.SplitDrawings(text)
	}
	return cfg, nil
}

func printOutcomes(w io.Writer, out []app.Outcome) {
	for _, o := range out {
		fmt.Fprintf(w, "drops=%d height=%d\n", o.Drops, o.Height)
	}
}

// writeArtifacts renders the plots and chart for an extrapolated outcome.
// Direct outcomes carry no cycle records and produce nothing.
func writeArtifacts(o app.Outcome, dir, chart string) error {
	if o.Result == nil || (dir == "" && chart == "") {
		return nil
	}
	points := report.PointsFromRecords(o.Result.Records)
	label := fmt.Sprintf("%d drops", o.Drops)
	if dir != "" {
		paths, err := report.WriteHeightPlots(dir, label, points)
		if err != nil {
			return err
		}
		for _, p := range paths {
			log.Printf("wrote %s", p)
		}
	}
	if chart != "" {
		f, err := os.Create(chart)
		if err != nil {
			return err
		}
		title := fmt.Sprintf("%s, height %d", label, o.Height)
		if err := report.RenderRunPage(f, title, points, loopSurface(o.Result)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", chart)
	}
	return nil
}

// loopSurface returns the fingerprint the detected loop starts from.
func loopSurface(res *cycles.Result) *surface.Fingerprint {
	for _, rec := range res.Records {
		if rec.Loop != nil {
			fp := rec.Start
			return &fp
		}
	}
	return nil
}

func serve(addr string, database *db.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	if database != nil {
		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if err := database.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	mux.Handle("/", api.NewServer(database).ServeMux())

	server := &http.Server{
		Addr:              addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s", version.String(), addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
