// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"os"
	"strings"
)

// =============================================================================
// CREDENTIALS
// =============================================================================

// CredentialProvider supplies the auth token for backend requests. Token is
// called once per request and once per stream connection attempt, never
// cached by the client, so providers can rotate tokens underneath it.
type CredentialProvider interface {
	Token() (string, error)
}

// StaticCredential is a fixed token, useful for tests and local setups.
type StaticCredential string

func (s StaticCredential) Token() (string, error) {
	return string(s), nil
}

// FileCredential reads the token from a file on every call. Rotating the
// token is replacing the file.
type FileCredential struct {
	Path string
}

func (f FileCredential) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", &ClientError{Type: ErrTypeCredential, Message: "read credential file", Cause: err}
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", &ClientError{Type: ErrTypeCredential, Message: "credential file is empty"}
	}
	return token, nil
}

// NoCredential disables auth for backends that do not require it.
type NoCredential struct{}

func (NoCredential) Token() (string, error) {
	return "", nil
}
