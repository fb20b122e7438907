package vm

import "github.com/lookbusy1344/lua-vm/value"

// StackSnapshot captures the register stack for change detection
type StackSnapshot struct {
	Slots []value.Value
}

// Capture captures the current state of the register stack
func (s *StackSnapshot) Capture(vm *VM) {
	s.Slots = append(s.Slots[:0], vm.stack...)
}

// ChangedSlots returns the indices of registers that differ from another
// snapshot; slots present in only one snapshot count as changed.
func (s *StackSnapshot) ChangedSlots(other *StackSnapshot) []int {
	var changed []int
	n := len(s.Slots)
	if len(other.Slots) > n {
		n = len(other.Slots)
	}
	for i := 0; i < n; i++ {
		if i >= len(s.Slots) || i >= len(other.Slots) {
			changed = append(changed, i)
			continue
		}
		if !s.Slots[i].Eq(other.Slots[i]) {
			changed = append(changed, i)
		}
	}
	return changed
}

// Get returns the value of a slot from the snapshot, or Nil out of range.
func (s *StackSnapshot) Get(i int) value.Value {
	if i < 0 || i >= len(s.Slots) {
		return value.Nil
	}
	return s.Slots[i]
}
