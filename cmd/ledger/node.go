package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ScoreLedger/internal/api"
	"ScoreLedger/internal/ledger"
	"ScoreLedger/internal/logger"
	"ScoreLedger/internal/storage"
)

// Node represents a running ScoreLedger node.
type Node struct {
	cfg     *Config
	storage *storage.Storage
	ledger  *ledger.Ledger
	api     *api.Server
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initLedger(); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(cfg.HTTPAddress, n.ledger)

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(n.cfg.DataPath + "/db")
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initLedger opens the attestation store and restores a snapshot if requested.
func (n *Node) initLedger() error {
	l, err := ledger.New(n.storage)
	if err != nil {
		return fmt.Errorf("init ledger:\n%w", err)
	}

	n.ledger = l

	if n.cfg.RestorePath != "" {
		data, err := os.ReadFile(n.cfg.RestorePath)
		if err != nil {
			return fmt.Errorf("read snapshot %s:\n%w", n.cfg.RestorePath, err)
		}

		if err := l.ImportSnapshot(data); err != nil {
			return fmt.Errorf("restore snapshot:\n%w", err)
		}
	}

	return nil
}

// Run starts the API server and blocks until the node is signalled to stop.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if err := n.api.Stop(); err != nil {
		logger.Error("api shutdown error", "error", err)
	}

	return n.Close()
}

// Count returns the ledger's current write count.
func (n *Node) Count() uint64 {
	return n.ledger.AttestationCount()
}

// Close releases node resources.
func (n *Node) Close() error {
	if n.storage == nil {
		return nil
	}

	return n.storage.Close()
}
