package debugger

import (
	"fmt"
	"sync"

	"github.com/lookbusy1344/lua-vm/value"
	"github.com/lookbusy1344/lua-vm/vm"
)

// WatchTarget identifies what a watchpoint observes
type WatchTarget int

const (
	WatchGlobal WatchTarget = iota // A global variable by name
	WatchSlot                      // A register stack slot by index
)

// Watchpoint fires when the watched value changes between steps
type Watchpoint struct {
	ID         int
	Target     WatchTarget
	Expression string // Original expression text for display
	Name       string // Global name (WatchGlobal)
	Slot       int    // Stack slot (WatchSlot)
	Enabled    bool
	HitCount   int

	lastValue value.Value
}

// WatchpointManager manages all watchpoints
type WatchpointManager struct {
	mu          sync.RWMutex
	watchpoints map[int]*Watchpoint // ID -> watchpoint
	nextID      int
}

// NewWatchpointManager creates a new watchpoint manager
func NewWatchpointManager() *WatchpointManager {
	return &WatchpointManager{
		watchpoints: make(map[int]*Watchpoint),
		nextID:      1,
	}
}

// AddGlobalWatch adds a watchpoint on a global variable
func (wm *WatchpointManager) AddGlobalWatch(name string) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp := &Watchpoint{
		ID:         wm.nextID,
		Target:     WatchGlobal,
		Expression: name,
		Name:       name,
		Enabled:    true,
	}
	wm.watchpoints[wp.ID] = wp
	wm.nextID++
	return wp
}

// AddSlotWatch adds a watchpoint on a register stack slot
func (wm *WatchpointManager) AddSlotWatch(slot int) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp := &Watchpoint{
		ID:         wm.nextID,
		Target:     WatchSlot,
		Expression: fmt.Sprintf("$%d", slot),
		Slot:       slot,
		Enabled:    true,
	}
	wm.watchpoints[wp.ID] = wp
	wm.nextID++
	return wp
}

// Initialize records the current value of a watchpoint's target so the
// first change check has a baseline.
func (wm *WatchpointManager) Initialize(id int, machine *vm.VM) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp, exists := wm.watchpoints[id]
	if !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	wp.lastValue = wm.currentValue(wp, machine)
	return nil
}

func (wm *WatchpointManager) currentValue(wp *Watchpoint, machine *vm.VM) value.Value {
	if wp.Target == WatchGlobal {
		return machine.Global(wp.Name)
	}
	return machine.StackGet(wp.Slot)
}

// CheckWatchpoints compares every enabled watchpoint against the current
// VM state. Returns the first watchpoint whose value changed, or nil.
func (wm *WatchpointManager) CheckWatchpoints(machine *vm.VM) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	for _, wp := range wm.watchpoints {
		if !wp.Enabled {
			continue
		}
		now := wm.currentValue(wp, machine)
		if !now.Eq(wp.lastValue) {
			wp.lastValue = now
			wp.HitCount++
			return wp
		}
	}
	return nil
}

// DeleteWatchpoint removes a watchpoint by ID
func (wm *WatchpointManager) DeleteWatchpoint(id int) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if _, exists := wm.watchpoints[id]; !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	delete(wm.watchpoints, id)
	return nil
}

// EnableWatchpoint enables a watchpoint by ID
func (wm *WatchpointManager) EnableWatchpoint(id int) error {
	return wm.setEnabled(id, true)
}

// DisableWatchpoint disables a watchpoint by ID
func (wm *WatchpointManager) DisableWatchpoint(id int) error {
	return wm.setEnabled(id, false)
}

func (wm *WatchpointManager) setEnabled(id int, enabled bool) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp, exists := wm.watchpoints[id]
	if !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	wp.Enabled = enabled
	return nil
}

// GetWatchpoint returns a watchpoint by ID
func (wm *WatchpointManager) GetWatchpoint(id int) *Watchpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	return wm.watchpoints[id]
}

// GetAllWatchpoints returns all watchpoints
func (wm *WatchpointManager) GetAllWatchpoints() []*Watchpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	result := make([]*Watchpoint, 0, len(wm.watchpoints))
	for _, wp := range wm.watchpoints {
		result = append(result, wp)
	}
	return result
}

// Clear removes all watchpoints
func (wm *WatchpointManager) Clear() {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wm.watchpoints = make(map[int]*Watchpoint)
}

// Count returns the number of watchpoints
func (wm *WatchpointManager) Count() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	return len(wm.watchpoints)
}
