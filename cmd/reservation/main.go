package main

import (
	"flag"
	"log"

	"github.com/Zereker/reservation/internal/server"
)

var (
	configFile = flag.String("config", "configs/config.toml", "Path to config file")
	mode       = flag.String("mode", "", "Override server mode: http, mcp or both")
)

func init() {
	flag.Parse()
}

func main() {
	conf, err := server.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *mode != "" {
		conf.Server.Mode = *mode
		if err := conf.Validate(); err != nil {
			log.Fatalf("invalid mode %q: %v", *mode, err)
		}
	}

	srv, err := server.NewServer(conf)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	defer func() { _ = srv.Shutdown() }()

	if err = srv.Start(); err != nil {
		_ = srv.Shutdown()
		log.Fatalf("failed to run server: %v", err)
	}
}
