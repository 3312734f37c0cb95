package main

import (
	"fmt"
	"os"

	"ScoreLedger/internal/logger"
)

func main() {
	logger.Init()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg := parseFlags()

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg, node)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(cfg *Config, node *Node) {
	logger.Info("starting ScoreLedger node",
		"http", cfg.HTTPAddress,
		"data", cfg.DataPath,
		"attestations", node.Count(),
	)
}
