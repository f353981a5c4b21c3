// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ldbfs-export copies the users and sudo rules of a directory database
// into an SQLite snapshot that ldbfs can mount in its place.
//
// Usage:
//
//	ldbfs-export [flags] <database> <snapshot>
//
// The snapshot is created when missing. Re-running against an existing
// snapshot only rewrites entries that changed and deletes entries that
// are gone. With --dump, every row is printed afterwards in CBOR
// diagnostic notation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ldbfs/lib/codec"
	"github.com/bureau-foundation/ldbfs/lib/config"
	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/process"
	"github.com/bureau-foundation/ldbfs/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type request struct {
	cfg      *config.Config
	snapshot string
	filter   string
	dump     bool
}

// parse returns a nil request when only --version was requested.
func parse(args []string) (*request, error) {
	var (
		configPath  string
		filter      string
		dump        bool
		debug       bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("ldbfs-export", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file for lock and LDAP settings (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&filter, "filter", directory.DefaultExportFilter, "LDAP filter selecting the entries to export")
	flagSet.BoolVar(&dump, "dump", false, "print every snapshot row in CBOR diagnostic notation after exporting")
	flagSet.BoolVar(&debug, "debug", false, "log debug messages")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ldbfs-export [flags] <database> <snapshot>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if showVersion {
		return nil, nil
	}

	positional := flagSet.Args()
	if len(positional) != 2 {
		return nil, fmt.Errorf("expected <database> <snapshot>, got %d arguments", len(positional))
	}
	if _, err := directory.CompileFilter(filter); err != nil {
		return nil, fmt.Errorf("invalid --filter: %w", err)
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	cfg.Database = positional[0]
	if debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &request{cfg: cfg, snapshot: positional[1], filter: filter, dump: dump}, nil
}

func run(args []string) error {
	req, err := parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if req == nil {
		fmt.Printf("ldbfs-export %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if req.cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return export(ctx, req, os.Stdout, logger)
}

// export runs one export and, when requested, writes the dump to out.
func export(ctx context.Context, req *request, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	source, err := directory.Open(ctx, req.cfg.Database, req.cfg.SourceOptions(logger))
	if err != nil {
		return fmt.Errorf("opening directory database: %w", err)
	}
	defer source.Close()

	pool, err := directory.OpenSnapshotPool(req.snapshot, logger)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer pool.Close()

	result, err := directory.Export(ctx, source, pool, req.filter)
	if err != nil {
		return err
	}
	logger.Info("snapshot exported",
		"database", req.cfg.Database,
		"snapshot", req.snapshot,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"deleted", result.Deleted,
	)

	if !req.dump {
		return nil
	}
	return directory.Dump(ctx, pool, func(dn string, attributes []byte) error {
		notation, err := codec.Diagnose(attributes)
		if err != nil {
			return fmt.Errorf("diagnosing %q: %w", dn, err)
		}
		_, err = fmt.Fprintf(out, "%s\n\t%s\n", dn, notation)
		return err
	})
}
