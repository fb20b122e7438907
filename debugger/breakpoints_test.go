package debugger_test

import (
	"testing"

	"github.com/lookbusy1344/lua-vm/debugger"
)

func TestAddBreakpoint(t *testing.T) {
	bm := debugger.NewBreakpointManager()

	bp := bm.AddBreakpoint(3, false, "")
	if bp.ID != 1 {
		t.Errorf("first breakpoint ID: got %d, want 1", bp.ID)
	}
	if bp.Index != 3 {
		t.Errorf("index: got %d, want 3", bp.Index)
	}
	if !bp.Enabled {
		t.Error("new breakpoint should be enabled")
	}
	if bm.Count() != 1 {
		t.Errorf("count: got %d, want 1", bm.Count())
	}
}

func TestAddBreakpointSameIndexUpdates(t *testing.T) {
	bm := debugger.NewBreakpointManager()

	first := bm.AddBreakpoint(3, false, "")
	second := bm.AddBreakpoint(3, true, "g == 1")

	if first.ID != second.ID {
		t.Error("re-adding at the same index should update, not duplicate")
	}
	if bm.Count() != 1 {
		t.Errorf("count: got %d, want 1", bm.Count())
	}
	if !second.Temporary || second.Condition != "g == 1" {
		t.Error("update did not apply new settings")
	}
}

func TestDeleteBreakpoint(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bp := bm.AddBreakpoint(0, false, "")

	if err := bm.DeleteBreakpoint(bp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if bm.Count() != 0 {
		t.Error("breakpoint not removed")
	}
	if err := bm.DeleteBreakpoint(bp.ID); err == nil {
		t.Error("deleting twice should fail")
	}
}

func TestDeleteBreakpointAt(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bm.AddBreakpoint(5, false, "")

	if err := bm.DeleteBreakpointAt(5); err != nil {
		t.Fatalf("delete at: %v", err)
	}
	if err := bm.DeleteBreakpointAt(5); err == nil {
		t.Error("deleting at empty index should fail")
	}
}

func TestEnableDisable(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bp := bm.AddBreakpoint(2, false, "")

	if err := bm.DisableBreakpoint(bp.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if bm.GetBreakpoint(2).Enabled {
		t.Error("breakpoint should be disabled")
	}
	if err := bm.EnableBreakpoint(bp.ID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !bm.GetBreakpoint(2).Enabled {
		t.Error("breakpoint should be enabled")
	}
	if err := bm.EnableBreakpoint(99); err == nil {
		t.Error("enabling unknown ID should fail")
	}
}

func TestProcessHitTemporary(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bm.AddBreakpoint(1, true, "")

	hit := bm.ProcessHit(1)
	if hit == nil {
		t.Fatal("expected hit")
	}
	if hit.HitCount != 1 {
		t.Errorf("hit count: got %d, want 1", hit.HitCount)
	}
	if bm.HasBreakpoint(1) {
		t.Error("temporary breakpoint should auto-delete on hit")
	}
	if bm.ProcessHit(1) != nil {
		t.Error("hit on empty index should return nil")
	}
}

func TestGetAllAndClear(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bm.AddBreakpoint(0, false, "")
	bm.AddBreakpoint(1, false, "")

	if len(bm.GetAllBreakpoints()) != 2 {
		t.Error("expected 2 breakpoints")
	}

	bm.Clear()
	if bm.Count() != 0 {
		t.Error("clear did not remove breakpoints")
	}
}

func TestGetBreakpointByID(t *testing.T) {
	bm := debugger.NewBreakpointManager()
	bp := bm.AddBreakpoint(4, false, "")

	if got := bm.GetBreakpointByID(bp.ID); got == nil || got.Index != 4 {
		t.Error("lookup by ID failed")
	}
	if bm.GetBreakpointByID(99) != nil {
		t.Error("unknown ID should return nil")
	}
}
