// Command riskindex preprocesses accident history: it writes the categorical
// mapping the risk model is trained against and reports the busiest
// accident locations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/mohamedthameursassi/saferoute/preprocessing"
	"github.com/mohamedthameursassi/saferoute/riskmap"
)

type indexDump struct {
	Summary  map[string]int      `json:"summary"`
	Hotspots []riskmap.RiskPoint `json:"hotspots"`
}

func main() {
	var (
		accidents string
		dsn       string
		table     string
		mappings  string
		out       string
		top       int
	)
	flag.StringVar(&accidents, "accidents", "data/acidentes.json", "Path to the accident history (.json or .csv)")
	flag.StringVar(&dsn, "dsn", "", "Postgres DSN; reads accidents from the database instead of a file")
	flag.StringVar(&table, "table", "acidentes", "Accident table when -dsn is set")
	flag.StringVar(&mappings, "mappings", "data/mapeamentos.json", "Path to write the categorical mapping")
	flag.StringVar(&out, "out", "", "Optional path to write the hotspot summary as JSON")
	flag.IntVar(&top, "top", 10, "Number of hotspots to report")
	flag.Parse()

	ctx := context.Background()
	var src preprocessing.Source = preprocessing.FileSource{Path: accidents}
	if dsn != "" {
		pg, err := preprocessing.NewPostgresSource(ctx, dsn, table)
		if err != nil {
			log.Fatalf("failed to open accident database: %v", err)
		}
		defer pg.Close()
		src = pg
	}

	log.Println("Loading accident history...")
	records, err := src.Accidents(ctx)
	if err != nil {
		log.Fatalf("failed to load accidents: %v", err)
	}

	if err := writeJSON(mappings, preprocessing.BuildMapping(records)); err != nil {
		log.Fatalf("failed to write mapping: %v", err)
	}

	surface := riskmap.Build(preprocessing.Locations(records))
	dump := indexDump{
		Summary: map[string]int{
			"accidents": len(records),
			"locations": surface.Len(),
			"maxCount":  surface.MaxCount(),
		},
		Hotspots: hotspots(surface, top),
	}
	if out != "" {
		if err := writeJSON(out, dump); err != nil {
			log.Fatalf("failed to write summary: %v", err)
		}
	}

	fmt.Printf("Mapping written to %s\n", mappings)
	fmt.Printf("Summary: accidents=%d locations=%d maxCount=%d\n",
		len(records), surface.Len(), surface.MaxCount())
	printHotspots(os.Stdout, dump.Hotspots)
}

// hotspots returns the n locations with the most accidents.
func hotspots(s *riskmap.Surface, n int) []riskmap.RiskPoint {
	points := s.Points()
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Count > points[j].Count
	})
	if n >= 0 && len(points) > n {
		points = points[:n]
	}
	return points
}

func printHotspots(w io.Writer, points []riskmap.RiskPoint) {
	for i, p := range points {
		fmt.Fprintf(w, "%3d. (%.6f, %.6f) count=%d score=%.3f\n", i+1, p.Latitude, p.Longitude, p.Count, p.Score)
	}
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
