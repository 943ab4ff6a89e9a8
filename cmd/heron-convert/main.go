// Heron - Insurance product recommendations with an opinion.
// Copyright (c) 2025 smartcover.io
// Licensed under the Apache License 2.0

// heron-convert turns a raw policy ledger CSV into the catalog and
// analysis artifacts the API serves:
//
//	real_insurance_data.json  - product catalog
//	customer_analysis.json    - customer personas by age band
//	data_summary.json         - ledger-level summary report
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/smartcover/heron/internal/convert"
)

func main() {
	input := flag.String("input", "", "path to the policy ledger CSV (required)")
	outdir := flag.String("outdir", "./data", "output directory for generated artifacts")
	seed := flag.Int64("seed", 0, "rating seed (0 = time-based)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: heron-convert -input ledger.csv [-outdir ./data] [-seed N]")
		os.Exit(2)
	}

	f, err := os.Open(*input)
	if err != nil {
		slog.Error("failed to open ledger", "path", *input, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	policies, err := convert.ReadLedger(f)
	if err != nil {
		slog.Error("failed to parse ledger", "path", *input, "error", err)
		os.Exit(1)
	}
	slog.Info("ledger parsed", "policies", len(policies))

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	conv := convert.New(rand.New(rand.NewSource(*seed)))

	products := conv.Products(policies)
	personas := conv.Personas(policies)
	summary := conv.Summarize(policies)

	if err := os.MkdirAll(*outdir, 0755); err != nil {
		slog.Error("failed to create output directory", "path", *outdir, "error", err)
		os.Exit(1)
	}

	outputs := []struct {
		name string
		data interface{}
	}{
		{"real_insurance_data.json", products},
		{"customer_analysis.json", personas},
		{"data_summary.json", summary},
	}

	for _, out := range outputs {
		path := filepath.Join(*outdir, out.name)
		if err := writeJSON(path, out.data); err != nil {
			slog.Error("failed to write artifact", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("artifact written", "path", path)
	}

	slog.Info("conversion complete",
		"products", len(products),
		"personas", len(personas),
		"policies", len(policies),
	)
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
