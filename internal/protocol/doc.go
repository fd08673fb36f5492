// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the wire codec for the chat streaming channel.
//
// Outbound, a turn starts with a single chat request frame:
//
//	{"type":"chat","messages":[{"role":"user","content":"...",
//	 "image":"<base64>","document":{...}}],"model":"...","web_search":false}
//
// Inbound frames are decoded into a tagged Frame holding exactly one of
// Delta, ModelLoading, ToolEvent, Done, or Error. Decoding is total: a
// frame that matches no known shape decodes to an Error frame instead of
// failing, so the consumer always has a defined transition.
package protocol
