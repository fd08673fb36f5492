// rigchat - a terminal client for a local AI chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/thinking"
	"github.com/jeranaias/rigchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		serverURL      = flag.String("server", "", "backend base URL (overrides config)")
		modelID        = flag.String("model", "", "model to chat with (overrides config)")
		conversationID = flag.String("conversation", "", "conversation ID to resume")
		webSearch      = flag.Bool("web", false, "enable web search for this session")
		showVersion    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rigchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*serverURL, *modelID, *conversationID, *webSearch); err != nil {
		fmt.Fprintln(os.Stderr, "rigchat:", err)
		os.Exit(1)
	}
}

func run(serverURL, modelID, conversationID string, webSearch bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if modelID != "" {
		cfg.DefaultModel = modelID
	}
	if webSearch {
		cfg.Chat.WebSearch = true
	}

	var creds api.CredentialProvider = api.NoCredential{}
	if cfg.Server.TokenFile != "" {
		creds = api.FileCredential{Path: cfg.Server.TokenFile}
	}

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:     cfg.Server.BaseURL,
		Timeout:     cfg.Server.RequestTimeout(),
		Credentials: creds,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout())
	defer cancel()

	// Resolve the model before anything else; a session without one
	// cannot send turns.
	if cfg.DefaultModel == "" {
		models, err := client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		if len(models) == 0 {
			return fmt.Errorf("backend has no models; pass -model or set default_model")
		}
		cfg.DefaultModel = models[0].ID
	}

	dataDir, err := cfg.ResolvedDataDir()
	if err != nil {
		return err
	}
	history, err := storage.NewConversationStore(filepath.Join(dataDir, "conversations"))
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	spans, err := thinking.OpenStore(filepath.Join(dataDir, "thinking.db"))
	if err != nil {
		return fmt.Errorf("open thinking store: %w", err)
	}
	defer spans.Close()

	controller := session.NewController(session.Config{
		ConnectTimeout:     cfg.Server.ConnectTimeout(),
		MaxConnectAttempts: cfg.Server.MaxConnectAttempts,
		RetryDelay:         cfg.Server.RetryDelay(),
	}, client)
	controller.SetHistory(history)
	controller.SetSpanStore(spans)
	controller.SetWebSearch(cfg.Chat.WebSearch)

	if conversationID == "" {
		conv, err := client.CreateConversation(ctx, cfg.DefaultModel)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
	}

	// Resume the local transcript when one exists, otherwise start clean.
	if err := controller.LoadConversation(conversationID); err != nil {
		if err := controller.BindConversation(conversationID); err != nil {
			return err
		}
	}
	if err := controller.SetModel(ctx, cfg.DefaultModel); err != nil {
		// The backend may not know this conversation yet; the model is
		// still set locally, so keep going.
		log.Printf("rigchat: set model: %v", err)
	}

	startConfigWatcher(controller)

	program := tea.NewProgram(chat.New(controller, cfg.UI), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// startConfigWatcher applies config file edits to the live session. Only
// settings that are safe to flip mid-session are picked up.
func startConfigWatcher(controller *session.Controller) {
	path, err := config.ConfigPath()
	if err != nil {
		return
	}
	w, err := config.NewWatcher(path, 200*time.Millisecond, func(cfg *config.Config) {
		controller.SetWebSearch(cfg.Chat.WebSearch)
	})
	if err != nil {
		log.Printf("rigchat: config watcher: %v", err)
		return
	}
	if err := w.Watch(); err != nil {
		log.Printf("rigchat: config watcher: %v", err)
	}
}
