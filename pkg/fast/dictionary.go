package fast

// Dictionary holds the previous values of stateful operators.
//
// Cells are addressed by the slot Templates.Add assigned to each
// instruction, so the instruction tree stays immutable and every Decoder
// and Encoder owns an independent Dictionary.
type Dictionary struct {
	cells []Value
	alloc Allocator
}

func newDictionary(alloc Allocator) *Dictionary {
	return &Dictionary{alloc: alloc}
}

// grow makes room for n cells. New cells are undefined.
func (d *Dictionary) grow(n int) {
	if n > len(d.cells) {
		d.cells = append(d.cells, make([]Value, n-len(d.cells))...)
	}
}

// cell returns the previous value of slot.
func (d *Dictionary) cell(slot int) *Value {
	return &d.cells[slot]
}

// Len returns the number of cells.
func (d *Dictionary) Len() int {
	return len(d.cells)
}

// Reset makes every cell undefined.
func (d *Dictionary) Reset() {
	for i := range d.cells {
		d.cells[i].undefine()
	}
}

// resetSlots makes the given cells undefined.
func (d *Dictionary) resetSlots(slots []int) {
	for _, slot := range slots {
		if slot < len(d.cells) {
			d.cells[slot].undefine()
		}
	}
}

// Lookup returns the previous value of inst's dictionary entry. The bool
// is false for stateless instructions. The view is invalidated by the next
// message.
func (d *Dictionary) Lookup(inst *Instruction) (FieldRef, bool) {
	if inst.slot < 0 || inst.slot >= len(d.cells) {
		return FieldRef{}, false
	}
	return FieldRef{inst: inst, v: &d.cells[inst.slot]}, true
}
