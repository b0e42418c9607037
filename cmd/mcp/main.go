// Kestrel MCP Server - Exposes the fraud engine as MCP tools for LLMs.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/mcpserver"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	// Stdout carries the MCP protocol; logs must stay off it.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	if os.Getenv("KESTREL_MCP_QUIET") == "true" {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		slog.SetDefault(logger)
	}

	cfg, err := domain.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	store, err := history.New(cfg.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	merchant := detector.NewMerchantScreening(cfg.Detectors)
	executor := dispatch.NewLocalExecutor(
		detector.NewCardTesting(cfg.Detectors),
		detector.NewGeoImpossibility(cfg.Detectors),
		detector.NewVelocity(cfg.Detectors),
		detector.NewCategoryAnomaly(cfg.Detectors),
		detector.NewTemporalAnomaly(cfg.Detectors),
		merchant,
	)
	scorer := scoring.NewEngine(cfg.Scoring)
	coord := coordinator.New(executor, scorer, store, nil, nil, cfg.Coordinator, logger)

	s := mcpserver.NewMCPServer(coord, store, scorer, merchant, Version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
