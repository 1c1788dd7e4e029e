// Package main is the dbaasd daemon entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbaasd/dbaasd/internal/buildinfo"
	"github.com/dbaasd/dbaasd/internal/config"
	"github.com/dbaasd/dbaasd/internal/daemon"
)

func main() {
	var showVersion bool
	var configPath string

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("dbaasd: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("dbaasd: starting %s", buildinfo.String())
	if err := daemon.Run(ctx, cfg); err != nil {
		log.Fatalf("dbaasd: %v", err)
	}
}
