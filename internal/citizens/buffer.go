package citizens

// Buffer is the fixed-capacity instance array. Items never grows; creation
// reuses released slots.
type Buffer struct {
	Items []Instance

	free  []InstanceID
	count int
}

// NewBuffer allocates a buffer with capacity slots. Slot 0 is reserved.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer{
		Items: make([]Instance, capacity),
		free:  make([]InstanceID, 0, capacity-1),
	}
	for id := capacity - 1; id >= 1; id-- {
		b.free = append(b.free, InstanceID(id))
	}
	return b
}

// Capacity returns the number of slots, including the sentinel.
func (b *Buffer) Capacity() int {
	return len(b.Items)
}

// Count returns the number of live instances.
func (b *Buffer) Count() int {
	return b.count
}

// Create claims a free slot, resets it and marks it created.
// Returns false when the buffer is full.
func (b *Buffer) Create() (InstanceID, bool) {
	if len(b.free) == 0 {
		return 0, false
	}
	id := b.free[len(b.free)-1]
	b.free = b.free[:len(b.free)-1]
	b.Items[id] = Instance{Flags: FlagCreated}
	b.count++
	return id, true
}

// Release frees a slot. Releasing the sentinel or a free slot is a no-op.
func (b *Buffer) Release(id InstanceID) {
	if id == 0 || int(id) >= len(b.Items) {
		return
	}
	if b.Items[id].Flags&FlagCreated == 0 {
		return
	}
	b.Items[id] = Instance{}
	b.free = append(b.free, id)
	b.count--
}

// Get returns a pointer to the instance in slot id, or nil if out of range.
func (b *Buffer) Get(id InstanceID) *Instance {
	if int(id) >= len(b.Items) {
		return nil
	}
	return &b.Items[id]
}
