package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"oran-rapps/internal/config"
	"oran-rapps/internal/telemetry/infrastructure/influx"
	"oran-rapps/internal/telemetry/infrastructure/synthetic"
)

type seedConfig struct {
	rapp       string
	configPath string
	address    string
	token      string
	org        string
	bucket     string
	dryRun     bool
	timeout    time.Duration
}

func main() {
	opts := parseConfig()

	cfg, err := config.Read(opts.configPath, opts.rapp, nil)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	applyOverrides(&cfg, opts)
	if cfg.DB.Address == "" {
		log.Fatal("DB.address (or -address) is required")
	}
	if cfg.DB.Bucket == "" {
		log.Fatal("DB.bucket (or -bucket) is required")
	}

	rows, tagKeys := synthetic.Dataset(cfg, time.Now)
	log.Printf("generated %d %s rows for bucket %s", len(rows), cfg.Name, cfg.DB.Bucket)
	if opts.dryRun {
		return
	}

	client := influx.NewClient(cfg.DB.Address, cfg.DB.Token, opts.timeout)
	defer client.Close()

	writer, err := influx.NewWriter(client, cfg.DB.Org, cfg.DB.Bucket, tagKeys)
	if err != nil {
		log.Fatalf("writer: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if err := writer.WriteRows(ctx, rows); err != nil {
		log.Fatalf("write rows: %v", err)
	}
	log.Printf("seeded %d rows", len(rows))
}

func parseConfig() seedConfig {
	cfg := seedConfig{}
	flag.StringVar(&cfg.rapp, "rapp", envOrDefault("RAPP_NAME", config.EnergySaving), "rApp dataset to generate (energy-saving or slice-prb)")
	flag.StringVar(&cfg.configPath, "config", envOrDefault("RAPP_CONFIG", "config.json"), "rApp configuration file")
	flag.StringVar(&cfg.address, "address", envOrDefault("INFLUX_ADDRESS", ""), "InfluxDB address override")
	flag.StringVar(&cfg.token, "token", envOrDefault("INFLUX_TOKEN", ""), "InfluxDB token override")
	flag.StringVar(&cfg.org, "org", envOrDefault("INFLUX_ORG", ""), "InfluxDB organisation override")
	flag.StringVar(&cfg.bucket, "bucket", envOrDefault("INFLUX_BUCKET", ""), "InfluxDB bucket override")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "generate rows without writing them")
	flag.DurationVar(&cfg.timeout, "timeout", time.Duration(envOrInt("SEED_TIMEOUT_SECONDS", 30))*time.Second, "write timeout")
	flag.Parse()
	return cfg
}

func applyOverrides(cfg *config.Config, opts seedConfig) {
	if opts.address != "" {
		cfg.DB.Address = opts.address
	}
	if opts.token != "" {
		cfg.DB.Token = opts.token
	}
	if opts.org != "" {
		cfg.DB.Org = opts.org
	}
	if opts.bucket != "" {
		cfg.DB.Bucket = opts.bucket
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
