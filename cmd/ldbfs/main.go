// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ldbfs mounts an SSSD LDB cache, LDAP server or ldbfs snapshot as a
// read-only filesystem of user photos and sudoers.
//
// Usage:
//
//	ldbfs [flags] <database>
//
// The mount stays up until SIGINT or SIGTERM, then is unmounted. With
// --sync-user-icons, AccountsService icons are pointed at the mounted
// photos every icon_sync.interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ldbfs/lib/config"
	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/iconsync"
	"github.com/bureau-foundation/ldbfs/lib/process"
	"github.com/bureau-foundation/ldbfs/lib/version"
	"github.com/bureau-foundation/ldbfs/lib/vtree"
	"github.com/bureau-foundation/ldbfs/lib/vtree/fuse"
)

// debugEnvironment enables debug logging when set to any value.
const debugEnvironment = "LDBFS_DEBUG"

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type flags struct {
	configPath  string
	mountpoint  string
	allowOther  bool
	syncIcons   bool
	hostname    string
	debug       bool
	showVersion bool
}

func newFlagSet(f *flags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("ldbfs", pflag.ContinueOnError)
	flagSet.StringVar(&f.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&f.mountpoint, "mountpoint", config.DefaultMountpoint, "directory to mount the tree on, created when missing")
	flagSet.BoolVar(&f.allowOther, "allow-other", false, "let users other than the mounting user read the tree")
	flagSet.BoolVar(&f.syncIcons, "sync-user-icons", false, "periodically point AccountsService user icons at the mounted photos")
	flagSet.StringVar(&f.hostname, "hostname", "", "host whose sudo rules sudoers.txt lists (default: this machine)")
	flagSet.BoolVar(&f.debug, "debug", false, "log debug messages and trace FUSE requests (also $"+debugEnvironment+")")
	flagSet.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ldbfs [flags] <database>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	return flagSet
}

// parse reads the config file and applies command-line overrides. It
// returns a nil config when only --version was requested.
func parse(args []string) (*config.Config, error) {
	var f flags
	flagSet := newFlagSet(&f)
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if f.showVersion {
		return nil, nil
	}

	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	switch positional := flagSet.Args(); len(positional) {
	case 0:
	case 1:
		cfg.Database = positional[0]
	default:
		return nil, fmt.Errorf("expected one database argument, got %d", len(positional))
	}
	if flagSet.Changed("mountpoint") {
		cfg.Mountpoint = f.mountpoint
	}
	if flagSet.Changed("allow-other") {
		cfg.AllowOther = f.allowOther
	}
	if flagSet.Changed("sync-user-icons") {
		cfg.IconSync.Enabled = f.syncIcons
	}
	if flagSet.Changed("hostname") {
		cfg.Directory.Hostname = f.hostname
	}
	if flagSet.Changed("debug") {
		cfg.Debug = f.debug
	}
	if os.Getenv(debugEnvironment) != "" {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string) error {
	cfg, err := parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Printf("ldbfs %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := directory.Open(ctx, cfg.Database, cfg.SourceOptions(logger))
	if err != nil {
		return fmt.Errorf("opening directory database: %w", err)
	}
	defer source.Close()

	provider := directory.NewProvider(source, cfg.ProviderConfig(logger))
	server, err := fuse.Mount(fuse.Options{
		Mountpoint: cfg.Mountpoint,
		Resolver:   vtree.NewResolver(provider),
		AllowOther: cfg.AllowOther,
		Debug:      cfg.Debug,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", cfg.Mountpoint, err)
	}
	logger.Info("serving directory",
		"mountpoint", server.Mountpoint(),
		"database", cfg.Database,
		"version", version.Info(),
	)

	jobContext, cancelJobs := context.WithCancel(ctx)
	var jobs sync.WaitGroup
	if cfg.IconSync.Enabled {
		startIconSync(jobContext, &jobs, cfg, provider, server.Mountpoint(), logger)
	}

	unmounted := make(chan struct{})
	go func() {
		server.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-unmounted:
		logger.Warn("filesystem was unmounted externally")
	}

	cancelJobs()
	jobs.Wait()

	select {
	case <-unmounted:
		return nil
	default:
	}
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", cfg.Mountpoint, err)
	}
	return nil
}

// startIconSync runs the icon reconciliation schedule on group until
// ctx is cancelled. Without a system bus the mount keeps serving and
// icons are left alone.
func startIconSync(ctx context.Context, group *sync.WaitGroup, cfg *config.Config, users iconsync.UserLister, mountpoint string, logger *slog.Logger) {
	store, err := iconsync.ConnectAccounts()
	if err != nil {
		logger.Error("icon sync disabled", "error", err)
		return
	}
	job, err := iconsync.NewJob(iconsync.Config{
		Users:      users,
		Store:      store,
		Mountpoint: mountpoint,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		logger.Error("icon sync disabled", "error", err)
		return
	}

	scheduler := iconsync.NewScheduler(job, cfg.IconSync.Interval, nil, logger)
	group.Go(func() {
		defer store.Close()
		scheduler.Run(ctx)
	})
}
