// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. The optional Watcher reloads the file on
// change so a running session picks up edits without restarting.
//
// Configuration file location:
//   - ~/.rigchat/config.toml
//   - Built-in defaults
package config
