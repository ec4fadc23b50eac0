// Package fieldwork generates traversal waypoints for field work and
// arbitrates how many workers may share a field at once.
package fieldwork

import (
	"sort"

	"github.com/talgya/npc-favor/internal/world"
)

// Area thresholds for worker capacity, in m².
const (
	SmallFieldArea = 2000
	LargeFieldArea = 8000

	// Chance a medium field admits a second worker.
	mediumSecondWorker = 0.1
)

// MaxWorkers computes how many workers a field of the given area admits.
// Medium fields roll once: usually one worker, occasionally two.
func MaxWorkers(area float64, rnd world.Random) int {
	switch {
	case area < SmallFieldArea:
		return 1
	case area <= LargeFieldArea:
		if rnd != nil && rnd.Float64() < mediumSecondWorker {
			return 2
		}
		return 1
	default:
		return 2
	}
}

type fieldSlots struct {
	capacity int
	slots    map[int]uint64 // slot → agent
}

// Assignment is one worker holding one slot.
type Assignment struct {
	FieldID uint64 `json:"field_id"`
	Slot    int    `json:"slot"`
	AgentID uint64 `json:"agent_id"`
}

// Coordinator tracks worker slots per field. A field's capacity is rolled
// on first use and kept, so medium fields do not flicker between one and
// two workers.
type Coordinator struct {
	rnd    world.Random
	fields map[uint64]*fieldSlots
}

// NewCoordinator creates a coordinator drawing capacity rolls from rnd.
func NewCoordinator(rnd world.Random) *Coordinator {
	return &Coordinator{rnd: rnd, fields: make(map[uint64]*fieldSlots)}
}

func (c *Coordinator) field(id uint64, area float64) *fieldSlots {
	f, ok := c.fields[id]
	if !ok {
		f = &fieldSlots{capacity: MaxWorkers(area, c.rnd), slots: make(map[int]uint64)}
		c.fields[id] = f
	}
	return f
}

// AssignWorker gives agent a slot (1-based) on the field. An agent that
// already holds a slot gets the same one back. ok is false when the field
// is full.
func (c *Coordinator) AssignWorker(fieldID, agent uint64, area float64) (int, bool) {
	f := c.field(fieldID, area)
	for slot, a := range f.slots {
		if a == agent {
			return slot, true
		}
	}
	for slot := 1; slot <= f.capacity; slot++ {
		if _, taken := f.slots[slot]; !taken {
			f.slots[slot] = agent
			return slot, true
		}
	}
	return 0, false
}

// Release frees the agent's slot on a field. Releasing a slot that is not
// held is a no-op.
func (c *Coordinator) Release(fieldID, agent uint64) bool {
	f, ok := c.fields[fieldID]
	if !ok {
		return false
	}
	for slot, a := range f.slots {
		if a == agent {
			delete(f.slots, slot)
			return true
		}
	}
	return false
}

// ReleaseAgent frees every slot the agent holds.
func (c *Coordinator) ReleaseAgent(agent uint64) int {
	n := 0
	for id := range c.fields {
		if c.Release(id, agent) {
			n++
		}
	}
	return n
}

// Capacity returns the field's capacity, or 0 if it was never used.
func (c *Coordinator) Capacity(fieldID uint64) int {
	if f, ok := c.fields[fieldID]; ok {
		return f.capacity
	}
	return 0
}

// Workers lists the agents on a field ordered by slot.
func (c *Coordinator) Workers(fieldID uint64) []uint64 {
	f, ok := c.fields[fieldID]
	if !ok {
		return nil
	}
	slots := make([]int, 0, len(f.slots))
	for s := range f.slots {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	out := make([]uint64, len(slots))
	for i, s := range slots {
		out[i] = f.slots[s]
	}
	return out
}

// Assignments lists every held slot in a stable order.
func (c *Coordinator) Assignments() []Assignment {
	var out []Assignment
	for id, f := range c.fields {
		for slot, a := range f.slots {
			out = append(out, Assignment{FieldID: id, Slot: slot, AgentID: a})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FieldID != out[j].FieldID {
			return out[i].FieldID < out[j].FieldID
		}
		return out[i].Slot < out[j].Slot
	})
	return out
}

// Capacities returns the rolled capacity of every known field.
func (c *Coordinator) Capacities() map[uint64]int {
	out := make(map[uint64]int, len(c.fields))
	for id, f := range c.fields {
		out[id] = f.capacity
	}
	return out
}

// Restore replaces all state. Assignments beyond a field's capacity are
// dropped.
func (c *Coordinator) Restore(capacities map[uint64]int, assigned []Assignment) {
	c.fields = make(map[uint64]*fieldSlots, len(capacities))
	for id, capacity := range capacities {
		if capacity < 1 {
			capacity = 1
		}
		if capacity > 2 {
			capacity = 2
		}
		c.fields[id] = &fieldSlots{capacity: capacity, slots: make(map[int]uint64)}
	}
	for _, a := range assigned {
		f, ok := c.fields[a.FieldID]
		if !ok {
			f = &fieldSlots{capacity: 1, slots: make(map[int]uint64)}
			c.fields[a.FieldID] = f
		}
		if a.Slot < 1 || a.Slot > f.capacity {
			continue
		}
		if _, taken := f.slots[a.Slot]; taken {
			continue
		}
		f.slots[a.Slot] = a.AgentID
	}
}
