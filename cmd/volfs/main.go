// Command volfs is an interactive front end for a volfs volume.
//
// On start it loads the saved volume, or creates one with the users admin,
// user1 and user2 and the directories root and documents. It saves the
// volume on exit.
//
// Configuration comes from VOLFS_* environment variables and flags:
//
//	volfs -state filesystem_state.bin
//	volfs -backend local -state ./checkpoints -keep 3
//	VOLFS_BUCKET=my-bucket volfs -backend s3 -ddb-table volfs-commits
//	VOLFS_MINIO_ACCESS_KEY=... VOLFS_MINIO_SECRET_KEY=... volfs -backend minio -bucket volfs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/volfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "volfs:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr)
	if err != nil {
		return err
	}
	level, err := cfg.level()
	if err != nil {
		return err
	}
	compression, err := cfg.compression()
	if err != nil {
		return err
	}

	optFns := []volfs.Option{
		volfs.WithGeometry(cfg.BlockSize, cfg.TotalBlocks),
		volfs.WithLogger(volfs.NewLogger(newLogHandler(stderr, level))),
		volfs.WithCompression(compression),
	}
	if cfg.FirstFit {
		optFns = append(optFns, volfs.WithFirstFitAllocation())
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	v, created, err := openVolume(ctx, b, optFns...)
	if err != nil {
		return err
	}
	if !cfg.JSON {
		if created {
			fmt.Fprintln(stdout, "No existing file system state found. Creating a new one.")
		} else {
			fmt.Fprintln(stdout, "File system state loaded successfully.")
		}
	}

	m := newMenu(v, stdin, stdout)
	m.json = cfg.JSON
	m.codec = cfg.codec()
	runErr := m.run()

	if !cfg.JSON {
		fmt.Fprintln(stdout, "Saving file system state...")
	}
	// Save even when interrupted, so a canceled ctx is not passed on.
	if err := b.Save(context.WithoutCancel(ctx), v); err != nil {
		return errors.Join(runErr, fmt.Errorf("save %s: %w", b, err))
	}
	if !cfg.JSON {
		fmt.Fprintln(stdout, "File system state saved successfully.")
	}
	return runErr
}
