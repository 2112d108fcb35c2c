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

// Package probeset implements fixed-capacity sets of string keys using
// open addressing. See https://en.wikipedia.org/wiki/Open_addressing.
//
// Every set is backed by a single slice of slots that is allocated when the
// set is constructed and never resized. The number of slots is taken from the
// HashFunction supplied to the constructor, which maps each key to its home
// slot. Two collision resolution strategies are provided.
//
// # Linear probing
//
// LinearProbing places a key in the first free slot at or after its home
// slot, wrapping around at the end of the table. Deletion leaves a tombstone
// behind: lookups skip tombstones and only stop at an empty slot, while
// insertions are free to reuse them. Because tombstones are not counted as
// live keys, a run of slots can contain far more tombstones than there are
// keys in the set, so probing is always bounded by the capacity of the
// table and never by the number of live keys.
//
// # Robin Hood hashing
//
// RobinHood also probes linearly, but each slot records its probe distance,
// the number of slots between the slot and its occupant's home. During
// insertion an incoming key that has travelled further than the occupant of
// a slot takes that slot, and the evicted occupant continues probing in its
// place ("take from the rich, give to the poor"). This keeps probe distances
// tightly clustered and lets a lookup stop as soon as it reaches a slot whose
// occupant is closer to home than the lookup has travelled. Deletion uses
// backward shifting rather than tombstones: the elements following the
// deleted slot are pulled back one slot until an empty slot or an element
// sitting in its home slot is reached.
//
// # Failure modes
//
// Inserting into a full set and inserting a duplicate are both reported by
// Insert returning false. A HashFunction that returns an index outside of
// [0, capacity) is a programming error and causes a panic with an
// *InvalidHashOutputError.
//
// Sets are NOT goroutine-safe and must not be copied by value. Use Clone to
// duplicate a set.
package probeset

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Set is the interface implemented by LinearProbing and RobinHood.
type Set interface {
	// Insert adds key to the set, returning false if the key is already
	// present or if the set is full.
	Insert(key string) bool
	// Contains returns whether key is present in the set.
	Contains(key string) bool
	// Remove deletes key from the set, returning false if it was not
	// present.
	Remove(key string) bool
	// Len returns the number of keys in the set.
	Len() int
	// Empty returns whether the set contains no keys.
	Empty() bool
	// Capacity returns the fixed number of slots in the set.
	Capacity() int
	// All calls yield for each key in the set in slot order, stopping early
	// if yield returns false.
	All(yield func(key string) bool)
	// Clear removes every key from the set.
	Clear()
	// PrintDebugInfo writes a dump of every slot to w, without modifying
	// the set.
	PrintDebugInfo(w io.Writer) error
}

var (
	// ErrInvalidCapacity is returned when constructing a set whose hash
	// function reports a capacity that is not positive.
	ErrInvalidCapacity = errors.New("probeset: capacity must be positive")
	// ErrNilHashFunction is returned when constructing a set without a hash
	// function.
	ErrNilHashFunction = errors.New("probeset: hash function must not be nil")
)

// InvalidHashOutputError is the panic value used when a HashFunction maps a
// key outside of [0, Capacity).
type InvalidHashOutputError struct {
	Key      string
	Index    int
	Capacity int
}

func (e *InvalidHashOutputError) Error() string {
	return fmt.Sprintf("probeset: hash(%q) = %d is outside of [0, %d)", e.Key, e.Index, e.Capacity)
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// table holds the state shared by the probing strategies.
type table struct {
	noCopy noCopy
	// The hash function supplied at construction. It is never replaced.
	hash HashFunction
	// The number of slots. Fixed at construction.
	capacity int
	// The number of occupied slots (i.e. the number of keys in the set).
	used   int
	logger *zap.Logger
}

func (t *table) init(hash HashFunction, options []option) error {
	if hash == nil {
		return ErrNilHashFunction
	}
	capacity := hash.Capacity()
	if capacity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	t.hash = hash
	t.capacity = capacity
	t.logger = zap.NewNop()
	for _, op := range options {
		op.apply(t)
	}
	return nil
}

// cloneInto copies the configuration and live count of t into c.
func (t *table) cloneInto(c *table) {
	c.hash = t.hash
	c.capacity = t.capacity
	c.used = t.used
	c.logger = t.logger
}

// home returns the home slot of key, panicking if the hash function does not
// honor its contract.
func (t *table) home(key string) int {
	h := t.hash.Hash(key)
	if h < 0 || h >= t.capacity {
		panic(&InvalidHashOutputError{Key: key, Index: h, Capacity: t.capacity})
	}
	return h
}

// Len returns the number of keys in the set.
func (t *table) Len() int {
	return t.used
}

// Empty returns whether the set contains no keys.
func (t *table) Empty() bool {
	return t.used == 0
}

// Capacity returns the number of slots in the set, which is also the maximum
// number of keys it can hold.
func (t *table) Capacity() int {
	return t.capacity
}

// LoadFactor returns the ratio of keys to slots.
func (t *table) LoadFactor() float64 {
	return float64(t.used) / float64(t.capacity)
}

// probeSeq maintains the state for a linear probe sequence starting at a home
// slot. The sequence visits every slot of the table exactly once, wrapping
// around at capacity:
//
//	p(i) := (home + i) mod capacity,  0 <= i < capacity
//
// index is the number of slots visited before offset, which is also the
// distance of offset from home.
type probeSeq struct {
	capacity int
	offset   int
	index    int
}

func makeProbeSeq(home, capacity int) probeSeq {
	return probeSeq{
		capacity: capacity,
		offset:   home,
		index:    0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset++
	if s.offset == s.capacity {
		s.offset = 0
	}
	return s
}

// done returns true once every slot of the table has been visited.
func (s probeSeq) done() bool {
	return s.index >= s.capacity
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d offset=%d index=%d", s.capacity, s.offset, s.index)
}

// slotState is the occupancy of a slot.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	// slotTombstone marks a slot whose key was removed from a LinearProbing
	// set. Lookups probe past it, insertions may reuse it.
	slotTombstone
)

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotOccupied:
		return "occupied"
	case slotTombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("slotState(%d)", uint8(s))
	}
}
