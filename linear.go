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

type linearSlot struct {
	key   string
	state slotState
}

// LinearProbing is a fixed-capacity set of strings that resolves collisions
// with linear probing and deletes using tombstones.
//
// A LinearProbing set is NOT goroutine-safe.
type LinearProbing struct {
	table
	// slots is capacity in length.
	slots []linearSlot
	// The number of slots in the slotTombstone state.
	tombstones int
}

var _ Set = (*LinearProbing)(nil)

// NewLinearProbing constructs an empty set with hash.Capacity() slots that
// uses hash to find the home slot of each key.
func NewLinearProbing(hash HashFunction, options ...option) (*LinearProbing, error) {
	t := &LinearProbing{}
	if err := t.init(hash, options); err != nil {
		return nil, err
	}
	t.slots = make([]linearSlot, t.capacity)
	t.checkInvariants()
	return t, nil
}

// Insert adds key to the set. It returns false, leaving the set unchanged, if
// the key is already present or if every slot is occupied.
func (t *LinearProbing) Insert(key string) bool {
	// Insert is find composed with an unchecked insert. The first free slot
	// in the probe sequence may be a tombstone that precedes the key, so the
	// whole run has to be searched before we know the key is absent.
	h := t.home(key)
	if i, ok := t.find(h, key); ok {
		if ce := t.logger.Check(zap.DebugLevel, "insert(duplicate)"); ce != nil {
			ce.Write(zap.String("key", key), zap.Int("index", i))
		}
		return false
	}

	for seq := makeProbeSeq(h, t.capacity); !seq.done(); seq = seq.next() {
		s := &t.slots[seq.offset]
		if s.state == slotOccupied {
			continue
		}
		if s.state == slotTombstone {
			t.tombstones--
		}
		s.key = key
		s.state = slotOccupied
		t.used++
		if ce := t.logger.Check(zap.DebugLevel, "insert"); ce != nil {
			ce.Write(zap.String("key", key), zap.Int("home", h), zap.Stringer("seq", seq))
		}
		t.checkInvariants()
		return true
	}

	if ce := t.logger.Check(zap.DebugLevel, "insert(full)"); ce != nil {
		ce.Write(zap.String("key", key), zap.Int("used", t.used))
	}
	return false
}

// Contains returns whether key is present in the set.
func (t *LinearProbing) Contains(key string) bool {
	_, ok := t.find(t.home(key), key)
	return ok
}

// Remove deletes key from the set, replacing it with a tombstone. It returns
// false if the key was not present.
func (t *LinearProbing) Remove(key string) bool {
	i, ok := t.find(t.home(key), key)
	if !ok {
		return false
	}
	t.slots[i] = linearSlot{state: slotTombstone}
	t.used--
	t.tombstones++
	if ce := t.logger.Check(zap.DebugLevel, "remove"); ce != nil {
		ce.Write(zap.String("key", key), zap.Int("index", i), zap.Int("tombstones", t.tombstones))
	}
	t.checkInvariants()
	return true
}

// find returns the index of the slot holding key, probing from slot h.
//
// Tombstones behave like occupied slots that never match, so only an empty
// slot proves that the key is absent. The number of tombstones in a run is
// unrelated to the number of live keys, which is why the probe is bounded by
// the capacity of the table.
func (t *LinearProbing) find(h int, key string) (int, bool) {
	for seq := makeProbeSeq(h, t.capacity); !seq.done(); seq = seq.next() {
		s := &t.slots[seq.offset]
		switch s.state {
		case slotEmpty:
			if ce := t.logger.Check(zap.DebugLevel, "find(not-found)"); ce != nil {
				ce.Write(zap.String("key", key), zap.Stringer("seq", seq))
			}
			return -1, false
		case slotOccupied:
			if s.key == key {
				return seq.offset, true
			}
		}
	}
	return -1, false
}

// Tombstones returns the number of slots holding a tombstone.
func (t *LinearProbing) Tombstones() int {
	return t.tombstones
}

// All calls yield sequentially for each key in the set in slot order. If
// yield returns false, iteration stops. The set must not be mutated during
// iteration.
func (t *LinearProbing) All(yield func(key string) bool) {
	for i := range t.slots {
		if t.slots[i].state == slotOccupied && !yield(t.slots[i].key) {
			return
		}
	}
}

// Clear removes every key and tombstone from the set. The capacity is
// unchanged.
func (t *LinearProbing) Clear() {
	clear(t.slots)
	t.used = 0
	t.tombstones = 0
	t.checkInvariants()
}

// Clone returns a deep copy of the set which shares only the hash function
// and logger with t.
func (t *LinearProbing) Clone() *LinearProbing {
	c := &LinearProbing{
		slots:      slices.Clone(t.slots),
		tombstones: t.tombstones,
	}
	t.cloneInto(&c.table)
	return c
}

// PrintDebugInfo writes the contents of every slot to w.
func (t *LinearProbing) PrintDebugInfo(w io.Writer) error {
	_, err := io.WriteString(w, t.DebugString())
	return err
}

// DebugString returns a human readable dump of every slot.
func (t *LinearProbing) DebugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", t.capacity, t.used, t.tombstones)
	for i := range t.slots {
		switch s := &t.slots[i]; s.state {
		case slotOccupied:
			fmt.Fprintf(&buf, "  %4d: %q\n", i, s.key)
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, s.state)
		}
	}
	return buf.String()
}

func (t *LinearProbing) checkInvariants() {
	if invariants {
		t.validate()
	}
}

// validate panics if the set is internally inconsistent.
func (t *LinearProbing) validate() {
	if len(t.slots) != t.capacity {
		panic(fmt.Sprintf("invariant failed: %d slots, but capacity is %d\n%s",
			len(t.slots), t.capacity, t.DebugString()))
	}

	var used, tombstones int
	seen := make(map[string]int, t.used)
	for i := range t.slots {
		s := &t.slots[i]
		switch s.state {
		case slotEmpty:
		case slotTombstone:
			if s.key != "" {
				panic(fmt.Sprintf("invariant failed: tombstone(%d) retains %q\n%s", i, s.key, t.DebugString()))
			}
			tombstones++
		case slotOccupied:
			if j, ok := seen[s.key]; ok {
				panic(fmt.Sprintf("invariant failed: %q found in slots %d and %d\n%s",
					s.key, j, i, t.DebugString()))
			}
			seen[s.key] = i
			if j, ok := t.find(t.home(s.key), s.key); !ok || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %q not reachable from home %d\n%s",
					i, s.key, t.home(s.key), t.DebugString()))
			}
			used++
		default:
			panic(fmt.Sprintf("invariant failed: slot(%d): unexpected state %s", i, s.state))
		}
	}

	if used != t.used {
		panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
			used, t.used, t.DebugString()))
	}
	if tombstones != t.tombstones {
		panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
			tombstones, t.tombstones, t.DebugString()))
	}
}
