package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joripage/matching-engine/config"
	"github.com/joripage/matching-engine/pkg/infra"
	"github.com/joripage/matching-engine/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile string
		source     string
		down       int
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "file://migration/sql", "Migration source URL")
	flag.IntVar(&down, "down", 0, "Roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.ServiceName+"-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint

	if cfg.OmsDB == nil || cfg.OmsDB.MigrationConnURL == "" {
		logger.Fatal("oms_db.migration_conn_url is required")
	}

	if down > 0 {
		err = infra.Rollback(source, cfg.OmsDB.MigrationConnURL, down)
	} else {
		err = infra.Migrate(source, cfg.OmsDB.MigrationConnURL)
	}
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
