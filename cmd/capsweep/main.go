package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/banshee-data/rockfall/internal/app"
	"github.com/banshee-data/rockfall/internal/config"
	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/input"
	"github.com/banshee-data/rockfall/internal/shaft"
)

var (
	configPath  = flag.String("config", "", "Path to a simulation config JSON file (defaults built in)")
	jetsPath    = flag.String("jets", "", "Path to the jet pattern file of '<' and '>'")
	capsList    = flag.String("caps", "5,8,12,16,20,30,40,50", "Comma-separated surface caps to check")
	samplesList = flag.String("samples", "100,1000,2022,5000,10000", "Comma-separated drop counts simulated directly for comparison")
	output      = flag.String("output", "", "Output CSV filename (defaults to stdout)")
)

var csvHeader = []string{"cap", "samples", "mismatches", "loop_start", "period", "gain"}

func main() {
	flag.Parse()

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
	cfg := config.DefaultSimulationConfig()
	if *configPath != "" {
		if cfg, err = config.LoadSimulationConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	base, err := app.ParamsFromConfig(cfg, imp)
	if err != nil {
		log.Fatalf("invalid parameters: %v", err)
	}
	caps, err := input.ParseCSVInts(*capsList)
	if err != nil {
		log.Fatalf("invalid -caps: %v", err)
	}
	samples, err := input.ParseCSVUint64s(*samplesList)
	if err != nil {
		log.Fatalf("invalid -samples: %v", err)
	}
	for _, n := range samples {
		if n > shaft.MaxProfileDrops {
			log.Fatalf("invalid -samples: %d exceeds the direct simulation limit of %d", n, shaft.MaxProfileDrops)
		}
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	failed, err := sweep(out, base, caps, samples)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
	if failed > 0 {
		log.Printf("%d of %d caps disagreed with direct simulation", failed, len(caps))
	}
}

// sweep checks each cap against the samples and writes one CSV row per
// cap. Caps too small for the repertoire are logged and skipped. It returns
// the number of caps with at least one mismatch.
func sweep(w io.Writer, base cycles.Params, caps []int, samples []uint64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	failed := 0
	for _, c := range caps {
		p := base
		p.SurfaceCap = c
		rep, err := cycles.VerifyCap(p, samples)
		if errors.Is(err, shaft.ErrInvalidInput) {
			log.Printf("skipping cap %d: %v", c, err)
			continue
		}
		if err != nil {
			return failed, fmt.Errorf("cap %d: %w", c, err)
		}
		if !rep.OK() {
			failed++
		}
		if err := cw.Write(reportRow(rep)); err != nil {
			return failed, err
		}
	}
	cw.Flush()
	return failed, cw.Error()
}

func reportRow(rep *cycles.CapReport) []string {
	row := []string{
		strconv.Itoa(rep.Cap),
		strconv.Itoa(len(rep.Samples)),
		strconv.Itoa(len(rep.Mismatches)),
		"", "", "",
	}
	if rep.Loop != nil {
		row[3] = strconv.FormatUint(rep.Loop.StartCycle, 10)
		row[4] = strconv.FormatUint(rep.Loop.Period, 10)
		row[5] = strconv.FormatUint(rep.Loop.Gain, 10)
	}
	return row
}
