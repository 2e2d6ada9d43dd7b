// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command dropfour starts the continuous learning service for the
// column-drop game AI.
//
// Usage:
//
//	go run ./cmd/dropfour serve
//	go run ./cmd/dropfour serve --config config.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8002/health
//
//	# Prometheus metrics
//	curl http://localhost:8002/metrics
//
//	# Submit a completed game over HTTP
//	curl -X POST http://localhost:8002/v1/learning/games \
//	  -H "Content-Type: application/json" \
//	  -d @game.json
//
// The WebSocket status channel lives at /v1/learning/ws.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dropfour/services/learning"
)

var (
	configPath string
	config     learning.Config
)

var rootCmd = &cobra.Command{
	Use:   "dropfour",
	Short: "Continuous learning service for the column-drop game AI",
	Long: `dropfour runs the learning side of the game AI: it ingests completed
games, maintains a prioritized experience memory, and retrains the live
policy model under a validation gate with automatic rollback.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the YAML configuration file")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, err := learning.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Error loading %s: %v", configPath, err)
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
		config = cfg
	}

	rootCmd.AddCommand(serveCmd)
}
