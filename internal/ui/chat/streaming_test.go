// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"
)

func TestStreamingBufferBatchFlush(t *testing.T) {
	sb := NewStreamingBuffer()

	// Below both thresholds: no flush.
	sb.Write("a")
	if _, ok := sb.Flush(); ok {
		t.Error("flushed below batch size and time threshold")
	}

	// Reaching the batch size triggers a flush regardless of time.
	for i := 0; i < 14; i++ {
		sb.Write("b")
	}
	content, ok := sb.Flush()
	if !ok {
		t.Fatal("batch size reached but no flush")
	}
	if content != "a"+strings.Repeat("b", 14) {
		t.Errorf("content = %q", content)
	}
	if sb.Pending() != 0 {
		t.Errorf("pending after flush = %d", sb.Pending())
	}
}

func TestStreamingBufferTimeFlush(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write("slow token")

	time.Sleep(40 * time.Millisecond)

	content, ok := sb.Flush()
	if !ok {
		t.Fatal("time threshold passed but no flush")
	}
	if content != "slow token" {
		t.Errorf("content = %q", content)
	}
}

func TestStreamingBufferForceFlush(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write("tail")

	content, ok := sb.ForceFlush()
	if !ok || content != "tail" {
		t.Errorf("ForceFlush = (%q, %v)", content, ok)
	}

	// Empty buffer force-flush reports nothing.
	if _, ok := sb.ForceFlush(); ok {
		t.Error("ForceFlush on empty buffer reported content")
	}
}

func TestStreamingBufferReset(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write("discard me")
	sb.Reset()

	if _, ok := sb.ForceFlush(); ok {
		t.Error("content survived Reset")
	}
	if sb.Pending() != 0 {
		t.Errorf("pending after reset = %d", sb.Pending())
	}
}

func TestStreamingBufferConcurrentWrites(t *testing.T) {
	sb := NewStreamingBuffer()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			sb.Write("x")
		}
		close(done)
	}()

	var total int
	for {
		if chunk, ok := sb.ForceFlush(); ok {
			total += len(chunk)
		}
		select {
		case <-done:
			if chunk, ok := sb.ForceFlush(); ok {
				total += len(chunk)
			}
			if total != 100 {
				t.Errorf("total flushed = %d, want 100", total)
			}
			return
		default:
		}
	}
}
