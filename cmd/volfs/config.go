package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/volfs/codec"
	"github.com/hupe1980/volfs/snapshot"
)

// Config holds the CLI configuration. Every field can be set from a VOLFS_*
// environment variable. All but the MinIO credentials can be overridden by a
// flag.
type Config struct {
	State       string `envconfig:"STATE" default:"filesystem_state.bin"`
	Backend     string `envconfig:"BACKEND" default:"file"`
	BlockSize   int    `envconfig:"BLOCK_SIZE" default:"512"`
	TotalBlocks int    `envconfig:"TOTAL_BLOCKS" default:"2048"`
	FirstFit    bool   `envconfig:"FIRST_FIT" default:"false"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Compression string `envconfig:"COMPRESSION" default:"zstd"`
	JSON        bool   `envconfig:"JSON" default:"false"`
	Codec       string `envconfig:"CODEC" default:"go-json"`

	RemoteConfig
}

// RemoteConfig configures the checkpoint backends. It is embedded in Config
// so its variables share the VOLFS_ prefix, for example VOLFS_BUCKET.
type RemoteConfig struct {
	Bucket         string `envconfig:"BUCKET"`
	Prefix         string `envconfig:"PREFIX" default:"volfs/"`
	Region         string `envconfig:"REGION"`
	Endpoint       string `envconfig:"ENDPOINT"`
	DDBTable       string `envconfig:"DDB_TABLE"`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioSecure    bool   `envconfig:"MINIO_SECURE" default:"false"`
	KeepVersions   int    `envconfig:"KEEP_VERSIONS" default:"5"`
	IOLimit        int64  `envconfig:"IO_LIMIT" default:"0"`
}

const envPrefix = "VOLFS"

// loadConfig reads the environment, then applies command-line flags.
func loadConfig(args []string, stderr io.Writer) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("volfs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.State, "state", cfg.State, "snapshot file, or directory for -backend=local")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "file, local, s3 or minio")
	fs.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "block size in bytes for a new volume")
	fs.IntVar(&cfg.TotalBlocks, "total-blocks", cfg.TotalBlocks, "number of blocks for a new volume")
	fs.BoolVar(&cfg.FirstFit, "first-fit", cfg.FirstFit, "reuse freed block runs")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "none, lz4 or zstd")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "print results as JSON")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "JSON codec: json or go-json")
	fs.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "bucket for s3 and minio")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "key prefix inside the bucket")
	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region for s3")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "custom S3 endpoint, path-style addressing")
	fs.StringVar(&cfg.MinioEndpoint, "minio-endpoint", cfg.MinioEndpoint, "MinIO host:port")
	fs.BoolVar(&cfg.MinioSecure, "minio-secure", cfg.MinioSecure, "use TLS for MinIO")
	fs.StringVar(&cfg.DDBTable, "ddb-table", cfg.DDBTable, "DynamoDB table for s3 commits")
	fs.IntVar(&cfg.KeepVersions, "keep", cfg.KeepVersions, "checkpoint generations to keep")
	fs.Int64Var(&cfg.IOLimit, "io-limit", cfg.IOLimit, "checkpoint bandwidth in bytes/sec, 0 for unlimited")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case "file", "local":
		if c.State == "" {
			return fmt.Errorf("backend %s needs a state path", c.Backend)
		}
	case "s3", "minio":
		if c.Bucket == "" {
			return fmt.Errorf("backend %s needs a bucket", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.compression(); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	return nil
}

func (c *Config) compression() (snapshot.Compression, error) {
	return snapshot.ParseCompression(c.Compression)
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

func (c *Config) codec() codec.Codec {
	cc, _ := codec.ByName(c.Codec)
	return cc
}

func newLogHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
