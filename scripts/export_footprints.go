// Script to export OPERA granule footprints for a region as a GeoJSON file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/footprint"
	"github.com/opengeos/opera-layer-service/internal/search"
	"github.com/opengeos/opera-layer-service/internal/settings"
)

func main() {
	product := flag.String("product", "OPERA_L3_DSWX-HLS_V1", "OPERA product short name")
	bboxArg := flag.String("bbox", "-125,24,-66,50", "bounding box as west,south,east,north")
	months := flag.Int("months", 1, "how many months back to search")
	maxResults := flag.Int("max", 100, "maximum number of granules")
	output := flag.String("out", "footprints.geojson", "output file path")
	flag.Parse()

	bbox, err := parseBBox(*bboxArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid bbox: %v\n", err)
		os.Exit(1)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -*months, 0)

	fmt.Printf("=== OPERA Footprint Export ===\n")
	fmt.Printf("Product:    %s\n", *product)
	fmt.Printf("Date range: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Bbox:       %v\n\n", bbox)

	client := cmr.NewClient(cmr.DefaultBaseURL, cmr.DefaultProvider, 30*time.Second)
	svc := search.NewService(client, config.DefaultProducts(), config.SearchConfig{
		DefaultMaxResults: *maxResults,
		MaxResultsCap:     2000,
		CacheSize:         1,
		CacheTTL:          time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	granules, err := svc.Search(ctx, search.Query{
		Product:    *product,
		BBox:       bbox,
		Start:      start,
		End:        end,
		MaxResults: *maxResults,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d granules\n", len(granules))

	fc, err := footprint.Render(*product+" footprints", granules, settings.Defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "footprint rendering failed: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d features to %s\n", len(fc.Features), *output)
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	bbox := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a number", part)
		}
		bbox[i] = v
	}
	return bbox, nil
}
