// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package thinking

import (
	"path/filepath"
	"testing"

	"github.com/jeranaias/rigchat/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "spans.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	spans := []model.ThinkSpan{
		{StartMs: 100, EndMs: 200, DurationMs: 100},
		{StartMs: 500, EndMs: 900, DurationMs: 400},
	}

	if err := store.Save("conv1", "fp1", spans); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load("conv1", "fp1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("loaded %d spans, want 2", len(got))
	}
	if got[0] != spans[0] || got[1] != spans[1] {
		t.Errorf("loaded spans = %+v, want %+v", got, spans)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Load("conv1", "absent")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d spans for missing key, want 0", len(got))
	}
}

func TestStore_SaveReadMergeWrite(t *testing.T) {
	store := newTestStore(t)

	two := []model.ThinkSpan{
		{StartMs: 1, EndMs: 2, DurationMs: 1},
		{StartMs: 3, EndMs: 5, DurationMs: 2},
	}
	one := []model.ThinkSpan{{StartMs: 1, EndMs: 2, DurationMs: 1}}

	if err := store.Save("conv1", "fp1", two); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Writing a shorter history must not clobber the longer stored one.
	if err := store.Save("conv1", "fp1", one); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load("conv1", "fp1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("stored history shrank to %d spans, want 2", len(got))
	}
}

func TestStore_MergeInto(t *testing.T) {
	store := newTestStore(t)

	msg := model.NewAssistantMessage("m1")
	msg.Content = "<think>reasoning</think>answer"
	msg.ThinkSpans = []model.ThinkSpan{{StartMs: 1, EndMs: 2, DurationMs: 1}}

	stored := []model.ThinkSpan{
		{StartMs: 1, EndMs: 2, DurationMs: 1},
		{StartMs: 4, EndMs: 8, DurationMs: 4},
	}
	if err := store.Save("conv1", Fingerprint(msg.Content), stored); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	merged, err := store.MergeInto("conv1", msg)
	if err != nil {
		t.Fatalf("MergeInto() error = %v", err)
	}
	if !merged {
		t.Error("MergeInto should report a merge")
	}
	if len(msg.ThinkSpans) != 2 {
		t.Errorf("message has %d spans, want 2", len(msg.ThinkSpans))
	}

	// Reverse direction: local longer than stored stays intact.
	longer := model.NewAssistantMessage("m2")
	longer.Content = msg.Content
	longer.ThinkSpans = []model.ThinkSpan{
		{StartMs: 1, EndMs: 2, DurationMs: 1},
		{StartMs: 4, EndMs: 8, DurationMs: 4},
		{StartMs: 9, EndMs: 10, DurationMs: 1},
	}
	merged, err = store.MergeInto("conv1", longer)
	if err != nil {
		t.Fatalf("MergeInto() error = %v", err)
	}
	if merged {
		t.Error("shorter stored history must not replace a longer local one")
	}
	if len(longer.ThinkSpans) != 3 {
		t.Errorf("message has %d spans, want 3", len(longer.ThinkSpans))
	}
}

func TestStore_DeleteConversation(t *testing.T) {
	store := newTestStore(t)

	spans := []model.ThinkSpan{{StartMs: 1, EndMs: 2, DurationMs: 1}}
	if err := store.Save("conv1", "fp1", spans); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("conv2", "fp1", spans); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.DeleteConversation("conv1"); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}

	got, _ := store.Load("conv1", "fp1")
	if len(got) != 0 {
		t.Error("conv1 spans should be gone")
	}
	got, _ = store.Load("conv2", "fp1")
	if len(got) != 1 {
		t.Error("conv2 spans should survive")
	}
}

func TestStore_Closed(t *testing.T) {
	store := newTestStore(t)
	store.Close()

	if err := store.Save("c", "f", nil); err != ErrStoreClosed {
		t.Errorf("Save() after close = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Load("c", "f"); err != ErrStoreClosed {
		t.Errorf("Load() after close = %v, want ErrStoreClosed", err)
	}

	// Double close is fine.
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
