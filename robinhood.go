// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package probeset

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"
)

type robinHoodSlot struct {
	key   string
	state slotState
	// dist is the number of slots between this slot and the home slot of key.
	dist int
}

// RobinHood is a fixed-capacity set of strings that resolves collisions with
// Robin Hood hashing and deletes using backward shifting.
//
// For every occupied slot i holding key k, slots[i].dist == (i - hash(k)) mod
// capacity, and a displaced element is always immediately preceded by an
// occupied slot whose distance is at least one less than its own:
//
//	slots[i+1].dist <= slots[i].dist + 1
//
// A lookup that has travelled further than the occupant of the slot it is
// examining can therefore stop: had the key been inserted, it would have
// evicted that occupant.
//
// A RobinHood set is NOT goroutine-safe.
type RobinHood struct {
	table
	// slots is capacity in length.
	slots []robinHoodSlot
}

var _ Set = (*RobinHood)(nil)

// NewRobinHood constructs an empty set with hash.Capacity() slots that uses
// hash to find the home slot of each key.
func NewRobinHood(hash HashFunction, options ...option) (*RobinHood, error) {
	t := &RobinHood{}
	if err := t.init(hash, options); err != nil {
		return nil, err
	}
	t.slots = make([]robinHoodSlot, t.capacity)
	t.checkInvariants()
	return t, nil
}

// Insert adds key to the set. It returns false, leaving the set unchanged, if
// the key is already present or if every slot is occupied.
func (t *RobinHood) Insert(key string) bool {
	h := t.home(key)
	if i, _, ok := t.find(h, key); ok {
		if ce := t.logger.Check(zap.DebugLevel, "insert(duplicate)"); ce != nil {
			ce.Write(zap.String("key", key), zap.Int("index", i))
		}
		return false
	}
	// Displacement rewrites slots as it goes, so a full table has to be
	// rejected before probing starts.
	if t.used == t.capacity {
		if ce := t.logger.Check(zap.DebugLevel, "insert(full)"); ce != nil {
			ce.Write(zap.String("key", key), zap.Int("used", t.used))
		}
		return false
	}

	// carry is the element looking for a slot. It starts out as key and is
	// swapped with every richer occupant we pass.
	carry := robinHoodSlot{key: key, state: slotOccupied}
	for seq := makeProbeSeq(h, t.capacity); !seq.done(); seq = seq.next() {
		s := &t.slots[seq.offset]
		if s.state == slotEmpty {
			*s = carry
			t.used++
			if ce := t.logger.Check(zap.DebugLevel, "insert"); ce != nil {
				ce.Write(zap.String("key", carry.key), zap.Int("dist", carry.dist), zap.Stringer("seq", seq))
			}
			t.checkInvariants()
			return true
		}
		if s.dist < carry.dist {
			if ce := t.logger.Check(zap.DebugLevel, "insert(displacing)"); ce != nil {
				ce.Write(zap.String("key", carry.key), zap.String("displaced", s.key),
					zap.Int("index", seq.offset))
			}
			carry, *s = *s, carry
		}
		carry.dist++
	}

	// There is at least one empty slot and every slot lies within capacity
	// steps of h, so the loop above always places the carried element.
	panic(fmt.Sprintf("probeset: no empty slot found for %q with used=%d < capacity=%d\n%s",
		carry.key, t.used, t.capacity, t.DebugString()))
}

// Contains returns whether key is present in the set.
func (t *RobinHood) Contains(key string) bool {
	_, _, ok := t.find(t.home(key), key)
	return ok
}

// Remove deletes key from the set, returning false if it was not present.
//
// The slots following key are shifted back by one slot until an empty slot
// or an element in its home slot is reached. This keeps every run of slots
// packed without the need for tombstones.
func (t *RobinHood) Remove(key string) bool {
	i, _, ok := t.find(t.home(key), key)
	if !ok {
		return false
	}
	t.slots[i] = robinHoodSlot{}
	t.used--

	var shifted int
	for seq := makeProbeSeq(i, t.capacity).next(); !seq.done(); seq = seq.next() {
		next := &t.slots[seq.offset]
		if next.state == slotEmpty || next.dist == 0 {
			break
		}
		t.slots[i] = robinHoodSlot{key: next.key, state: slotOccupied, dist: next.dist - 1}
		*next = robinHoodSlot{}
		i = seq.offset
		shifted++
	}

	if ce := t.logger.Check(zap.DebugLevel, "remove"); ce != nil {
		ce.Write(zap.String("key", key), zap.Int("shifted", shifted))
	}
	t.checkInvariants()
	return true
}

// find returns the index of the slot holding key, probing from slot h, along
// with the number of slots examined.
func (t *RobinHood) find(h int, key string) (index, probes int, ok bool) {
	for seq := makeProbeSeq(h, t.capacity); !seq.done(); seq = seq.next() {
		s := &t.slots[seq.offset]
		if s.state == slotEmpty {
			return -1, seq.index + 1, false
		}
		if s.key == key {
			return seq.offset, seq.index + 1, true
		}
		if s.dist < seq.index {
			// The occupant is closer to its home than we are to ours. Had key
			// been inserted it would have displaced this occupant.
			if ce := t.logger.Check(zap.DebugLevel, "find(cut-off)"); ce != nil {
				ce.Write(zap.String("key", key), zap.Int("dist", s.dist), zap.Stringer("seq", seq))
			}
			return -1, seq.index + 1, false
		}
	}
	return -1, t.capacity, false
}

// MaxProbeDistance returns the largest probe distance of any key in the set.
func (t *RobinHood) MaxProbeDistance() int {
	var longest int
	for i := range t.slots {
		if t.slots[i].state == slotOccupied && t.slots[i].dist > longest {
			longest = t.slots[i].dist
		}
	}
	return longest
}

// All calls yield sequentially for each key in the set in slot order. If
// yield returns false, iteration stops. The set must not be mutated during
// iteration.
func (t *RobinHood) All(yield func(key string) bool) {
	for i := range t.slots {
		if t.slots[i].state == slotOccupied && !yield(t.slots[i].key) {
			return
		}
	}
}

// Clear removes every key from the set. The capacity is unchanged.
func (t *RobinHood) Clear() {
	clear(t.slots)
	t.used = 0
	t.checkInvariants()
}

// Clone returns a deep copy of the set which shares only the hash function
// and logger with t.
func (t *RobinHood) Clone() *RobinHood {
	c := &RobinHood{
		slots: slices.Clone(t.slots),
	}
	t.cloneInto(&c.table)
	return c
}

// PrintDebugInfo writes the contents and probe distance of every slot to w.
func (t *RobinHood) PrintDebugInfo(w io.Writer) error {
	_, err := io.WriteString(w, t.DebugString())
	return err
}

// DebugString returns a human readable dump of every slot.
func (t *RobinHood) DebugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", t.capacity, t.used)
	for i := range t.slots {
		switch s := &t.slots[i]; s.state {
		case slotOccupied:
			fmt.Fprintf(&buf, "  %4d: %q [dist=%d]\n", i, s.key, s.dist)
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, s.state)
		}
	}
	return buf.String()
}

func (t *RobinHood) checkInvariants() {
	if invariants {
		t.validate()
	}
}

// validate panics if the set is internally inconsistent.
func (t *RobinHood) validate() {
	if len(t.slots) != t.capacity {
		panic(fmt.Sprintf("invariant failed: %d slots, but capacity is %d\n%s",
			len(t.slots), t.capacity, t.DebugString()))
	}

	var used int
	seen := make(map[string]int, t.used)
	for i := range t.slots {
		s := &t.slots[i]
		switch s.state {
		case slotEmpty:
			continue
		case slotOccupied:
		default:
			panic(fmt.Sprintf("invariant failed: slot(%d): unexpected state %s", i, s.state))
		}
		used++

		if j, ok := seen[s.key]; ok {
			panic(fmt.Sprintf("invariant failed: %q found in slots %d and %d\n%s",
				s.key, j, i, t.DebugString()))
		}
		seen[s.key] = i

		h := t.home(s.key)
		if dist := (i - h + t.capacity) % t.capacity; dist != s.dist {
			panic(fmt.Sprintf("invariant failed: slot(%d): %q has dist=%d, but home %d implies %d\n%s",
				i, s.key, s.dist, h, dist, t.DebugString()))
		}
		if s.dist > 0 {
			prev := &t.slots[(i-1+t.capacity)%t.capacity]
			if prev.state != slotOccupied || s.dist > prev.dist+1 {
				panic(fmt.Sprintf("invariant failed: slot(%d): %q with dist=%d follows a richer slot\n%s",
					i, s.key, s.dist, t.DebugString()))
			}
		}
		if j, _, ok := t.find(h, s.key); !ok || j != i {
			panic(fmt.Sprintf("invariant failed: slot(%d): %q not reachable from home %d\n%s",
				i, s.key, h, t.DebugString()))
		}
	}

	if used != t.used {
		panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
			used, t.used, t.DebugString()))
	}
}
