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
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRange(t *testing.T) {
	keyed, err := Keyed(37, []byte("secret"))
	require.NoError(t, err)

	testCases := map[string]HashFunction{
		"random":     Random(37),
		"consistent": ConsistentRandom(37),
		"identity":   Identity(37),
		"keyed":      keyed,
	}
	for name, h := range testCases {
		t.Run(name, func(t *testing.T) {
			require.EqualValues(t, 37, h.Capacity())
			hits := make([]int, h.Capacity())
			for i := 0; i < 10000; i++ {
				k := "key" + strconv.Itoa(i)
				v := h.Hash(k)
				require.GreaterOrEqual(t, v, 0)
				require.Less(t, v, h.Capacity())
				require.Equal(t, v, h.Hash(k))
				hits[v]++
			}
			// Every slot should be hit by a reasonable hash function.
			for i := range hits {
				require.NotZero(t, hits[i], "slot %d", i)
			}
		})
	}
}

func TestConsistentRandom(t *testing.T) {
	a, b := ConsistentRandom(1000), ConsistentRandom(1000)
	for i := 0; i < 100; i++ {
		k := strconv.Itoa(i)
		require.Equal(t, a.Hash(k), b.Hash(k))
	}
}

func TestRandomSeeded(t *testing.T) {
	a, b := Random(1<<30), Random(1<<30)
	var differ bool
	for i := 0; i < 100 && !differ; i++ {
		k := strconv.Itoa(i)
		differ = a.Hash(k) != b.Hash(k)
	}
	require.True(t, differ)
}

func TestIdentity(t *testing.T) {
	h := Identity(10)
	testCases := []struct {
		key      string
		expected int
	}{
		{"0", 0},
		{"7", 7},
		{"13", 3},
		{"100", 0},
		{"-1", 9},
		{"-23", 7},
	}
	for _, c := range testCases {
		t.Run(c.key, func(t *testing.T) {
			require.Equal(t, c.expected, h.Hash(c.key))
		})
	}

	// Non-integer keys are consistent but arbitrary.
	require.Equal(t, ConsistentRandom(10).Hash("quokka"), h.Hash("quokka"))
}

func TestZeroAndConstant(t *testing.T) {
	z := Zero(10)
	c := Constant(10, 7)
	for _, k := range []string{"", "a", "137", "lead shielding"} {
		require.Equal(t, 0, z.Hash(k))
		require.Equal(t, 7, c.Hash(k))
	}
	require.EqualValues(t, 10, z.Capacity())
	require.EqualValues(t, 10, c.Capacity())
}

func TestKeyed(t *testing.T) {
	secret := []byte("secret")
	a, err := Keyed(1<<30, secret)
	require.NoError(t, err)

	// The secret is copied.
	secret[0] = 'S'
	b, err := Keyed(1<<30, []byte("secret"))
	require.NoError(t, err)
	c, err := Keyed(1<<30, []byte("other"))
	require.NoError(t, err)

	var differ bool
	for i := 0; i < 100; i++ {
		k := strconv.Itoa(i)
		require.Equal(t, a.Hash(k), b.Hash(k))
		differ = differ || a.Hash(k) != c.Hash(k)
	}
	require.True(t, differ)

	_, err = Keyed(10, bytes.Repeat([]byte("x"), 65))
	require.Error(t, err)
}

func TestNonPositiveCapacity(t *testing.T) {
	constructors := map[string]func(capacity int) HashFunction{
		"random":     Random,
		"consistent": ConsistentRandom,
		"identity":   Identity,
	}
	for name, newHash := range constructors {
		for _, capacity := range []int{0, -1} {
			t.Run(fmt.Sprintf("%s/capacity=%d", name, capacity), func(t *testing.T) {
				defer func() {
					err, ok := recover().(error)
					require.True(t, ok, "expected an error to be raised")
					require.True(t, errors.Is(err, ErrInvalidCapacity), "%v", err)
				}()
				newHash(capacity)
			})
		}
	}

	for _, capacity := range []int{0, -1} {
		h, err := Keyed(capacity, []byte("secret"))
		require.ErrorIs(t, err, ErrInvalidCapacity)
		require.Nil(t, h)
	}

	// The degenerate functions never reduce, so tables are left to reject
	// them.
	require.EqualValues(t, 0, Zero(0).Capacity())
	require.EqualValues(t, -3, Constant(-3, 0).Capacity())
}

func TestWrap(t *testing.T) {
	h := Wrap(4, func(key string) int { return len(key) % 4 })
	require.EqualValues(t, 4, h.Capacity())
	require.Equal(t, 3, h.Hash("abc"))
	require.Equal(t, 0, h.Hash("abcd"))
}
