package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gigchain/config"
	"gigchain/integrations/exports"
	"gigchain/integrations/indexer"
)

// runExport writes the indexed jobs or disputes to stdout or a file. It reads
// the indexer database configured for the node and never touches node state.
func runExport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	dataset := fs.String("dataset", "jobs", "Dataset to export: jobs or disputes")
	format := fs.String("format", exports.FormatCSV, "Output format: csv or jsonl")
	status := fs.String("status", "", "Only export jobs in this status")
	party := fs.String("party", "", "Only export jobs where this address is client or freelancer")
	openOnly := fs.Bool("open", false, "Only export unresolved disputes")
	out := fs.String("out", "", "Output file (defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	if strings.TrimSpace(cfg.Indexer.Driver) == "" {
		fmt.Fprintln(stderr, "Error: indexer is not configured")
		return 1
	}
	gdb, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	ix, err := indexer.New(gdb, nil, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	data, checksum, err := exportDataset(context.Background(), ix, *dataset, *format, indexer.JobFilter{
		Status: *status,
		Party:  *party,
	}, *openOnly)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *out == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: write %s: %v\n", *out, err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (sha256 %s)\n", *out, checksum)
	return 0
}

func exportDataset(ctx context.Context, ix *indexer.Indexer, dataset, format string, filter indexer.JobFilter, openOnly bool) ([]byte, string, error) {
	switch strings.ToLower(dataset) {
	case "jobs":
		rows, err := ix.Jobs(ctx, filter)
		if err != nil {
			return nil, "", err
		}
		return exports.Render(format, rows, nil, dataset)
	case "disputes":
		rows, err := ix.Disputes(ctx, openOnly)
		if err != nil {
			return nil, "", err
		}
		return exports.Render(format, nil, rows, dataset)
	default:
		return nil, "", fmt.Errorf("unknown dataset %q", dataset)
	}
}
