// Command sfmcp serves the sfsynth MCP tools on stdio.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/cbegin/sfsynth-go/internal/config"
	"github.com/cbegin/sfsynth-go/internal/mcpserver"
)

func main() {
	configPath := flag.String("config", "", "YAML render settings")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = c
	}
	// stdout carries the protocol.
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if err := mcpserver.New(cfg, logger).Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
