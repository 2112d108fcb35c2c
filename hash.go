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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// HashFunction maps keys to slots of a table. Capacity determines the number
// of slots in any set constructed with the function, and Hash must return an
// index in [0, Capacity) that is deterministic for the lifetime of the
// function.
type HashFunction interface {
	Hash(key string) int
	Capacity() int
}

type funcHash struct {
	capacity int
	fn       func(key string) int
}

func (h funcHash) Hash(key string) int {
	return h.fn(key)
}

func (h funcHash) Capacity() int {
	return h.capacity
}

// Wrap returns a HashFunction with the specified capacity that uses fn to
// map keys to slots.
func Wrap(capacity int, fn func(key string) int) HashFunction {
	return funcHash{capacity: capacity, fn: fn}
}

// Random returns a HashFunction that distributes keys uniformly over
// capacity slots. The mapping is consistent for the returned function but is
// seeded randomly, so two functions returned by Random disagree. Random
// panics if capacity is not positive.
func Random(capacity int) HashFunction {
	mustBePositive(capacity)
	seed := rand.Uint64()
	return Wrap(capacity, func(key string) int {
		return reduce(fmix64(xxhash.Sum64String(key)^seed), capacity)
	})
}

// ConsistentRandom returns a HashFunction that distributes keys uniformly
// over capacity slots. Unlike Random the mapping is identical across
// functions and processes. ConsistentRandom panics if capacity is not
// positive.
func ConsistentRandom(capacity int) HashFunction {
	mustBePositive(capacity)
	return Wrap(capacity, func(key string) int {
		return reduce(xxhash.Sum64String(key), capacity)
	})
}

// Zero returns a HashFunction that maps every key to slot 0.
func Zero(capacity int) HashFunction {
	return Constant(capacity, 0)
}

// Constant returns a HashFunction that maps every key to slot v.
func Constant(capacity, v int) HashFunction {
	return Wrap(capacity, func(string) int {
		return v
	})
}

// Identity returns a HashFunction that maps keys which are decimal integers
// to their value modulo capacity, which makes the placement of such keys easy
// to predict. Other keys are mapped the way ConsistentRandom maps them.
// Identity panics if capacity is not positive.
func Identity(capacity int) HashFunction {
	mustBePositive(capacity)
	return Wrap(capacity, func(key string) int {
		v, err := strconv.Atoi(key)
		if err != nil {
			return reduce(xxhash.Sum64String(key), capacity)
		}
		v %= capacity
		if v < 0 {
			v += capacity
		}
		return v
	})
}

// Keyed returns a HashFunction that maps keys using BLAKE2b keyed with
// secret. Without knowledge of the secret it is infeasible to construct keys
// which collide, at the cost of hashing being considerably slower than
// Random. The secret must be at most 64 bytes long and capacity must be
// positive.
func Keyed(capacity int, secret []byte) (HashFunction, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if _, err := blake2b.New256(secret); err != nil {
		return nil, fmt.Errorf("probeset: invalid secret: %w", err)
	}
	secret = bytes.Clone(secret)
	return Wrap(capacity, func(key string) int {
		h, _ := blake2b.New256(secret)
		_, _ = io.WriteString(h, key)
		var sum [blake2b.Size256]byte
		return reduce(binary.LittleEndian.Uint64(h.Sum(sum[:0])), capacity)
	}), nil
}

// mustBePositive panics with an error wrapping ErrInvalidCapacity unless
// capacity can be reduced onto.
func mustBePositive(capacity int) {
	if capacity <= 0 {
		panic(fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity))
	}
}

// reduce maps h onto [0, n).
func reduce(h uint64, n int) int {
	return int(h % uint64(n))
}

// fmix64 is the 64-bit finalizer from MurmurHash3. It is used to spread a
// seed mixed into a hash across all of the bits.
func fmix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
