// Command graphgob converts an OSMnx node-link JSON export into the gob road
// graph read by the "graph" network mode.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohamedthameursassi/saferoute/routing"
	"github.com/mohamedthameursassi/saferoute/services"
)

type jsonGraph struct {
	Graph struct {
		Directed bool       `json:"directed"`
		Nodes    []jsonNode `json:"nodes"`
		Links    []jsonEdge `json:"links"`
	} `json:"graph"`
	// plain node-link exports have no wrapper
	Nodes []jsonNode `json:"nodes"`
	Links []jsonEdge `json:"links"`
}

type jsonNode struct {
	ID  interface{} `json:"id"` // int64 or string
	X   float64     `json:"x"`
	Y   float64     `json:"y"`
	Lon float64     `json:"lon"`
	Lat float64     `json:"lat"`
}

type jsonEdge struct {
	Source     interface{} `json:"source"`
	Target     interface{} `json:"target"`
	Length     float64     `json:"length"`
	TravelTime float64     `json:"travel_time"`
	Weight     float64     `json:"weight"`
	Name       interface{} `json:"name"` // string or array
}

func convertID(id interface{}) (int64, error) {
	switch v := id.(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported ID type: %T", id)
	}
}

func convertToString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// travelTime prefers the exported travel time, then the generic weight.
func (e jsonEdge) travelTime() float64 {
	if e.TravelTime > 0 {
		return e.TravelTime
	}
	return e.Weight
}

func convert(r io.Reader) (*routing.Graph, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var jg jsonGraph
	if err := dec.Decode(&jg); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	nodes, links := jg.Graph.Nodes, jg.Graph.Links
	if len(nodes) == 0 {
		nodes, links = jg.Nodes, jg.Links
	}

	g := routing.NewGraph()
	for _, n := range nodes {
		id, err := convertID(n.ID)
		if err != nil {
			return nil, fmt.Errorf("node ID (%v): %w", n.ID, err)
		}
		lat, lon := n.Lat, n.Lon
		if lat == 0 && lon == 0 {
			lat, lon = n.Y, n.X
		}
		g.AddNode(id, lat, lon)
	}

	skipped := 0
	for _, l := range links {
		from, err := convertID(l.Source)
		if err != nil {
			return nil, fmt.Errorf("source ID (%v): %w", l.Source, err)
		}
		to, err := convertID(l.Target)
		if err != nil {
			return nil, fmt.Errorf("target ID (%v): %w", l.Target, err)
		}
		if g.Nodes[from] == nil || g.Nodes[to] == nil {
			skipped++
			continue
		}
		g.AddEdge(from, to, l.Length, l.travelTime(), convertToString(l.Name))
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d edges with unknown endpoints\n", skipped)
	}
	return g, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: graphgob <input_json_file> [output_gob_file]")
		os.Exit(1)
	}
	inputPath := os.Args[1]

	outputPath := ""
	if len(os.Args) > 2 {
		outputPath = os.Args[2]
	} else {
		ext := filepath.Ext(inputPath)
		outputPath = strings.TrimSuffix(inputPath, ext) + ".gob"
	}

	f, err := os.Open(inputPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	g, err := convert(f)
	if err != nil {
		fmt.Printf("Error: %s: %v\n", inputPath, err)
		os.Exit(1)
	}
	if err := services.SaveGraph(outputPath, g); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully converted %s to %s\n", inputPath, outputPath)
	fmt.Printf("Nodes: %d, Edges: %d\n", len(g.Nodes), g.EdgeCount())
}
