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
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// layout returns the contents of every slot as "key/dist", using "_" for
// empty slots.
func (t *RobinHood) layout() []string {
	r := make([]string, len(t.slots))
	for i, s := range t.slots {
		if s.state == slotEmpty {
			r[i] = "_"
		} else {
			r[i] = fmt.Sprintf("%s/%d", s.key, s.dist)
		}
	}
	return r
}

func TestRobinHoodAdjacentBlocks(t *testing.T) {
	s, err := NewRobinHood(Identity(10))
	require.NoError(t, err)

	// Insert two adjacent runs of values to get this sequence:
	//
	//   .  1 11 21 31  5 15 25 35 .
	for _, k := range []string{"1", "11", "21", "31", "5", "15", "25", "35"} {
		require.True(t, s.Insert(k))
	}
	require.EqualValues(t, 8, s.Len())
	require.Equal(t, []string{
		"_", "1/0", "11/1", "21/2", "31/3", "5/0", "15/1", "25/2", "35/3", "_",
	}, s.layout())
	require.EqualValues(t, 3, s.MaxProbeDistance())

	// Removing 11 backward-shifts the rest of its block but stops at 5,
	// which is in its home slot:
	//
	//   .  1 21 31  .  5 15 25 35 .
	require.True(t, s.Remove("11"))
	require.Equal(t, []string{
		"_", "1/0", "21/1", "31/2", "_", "5/0", "15/1", "25/2", "35/3", "_",
	}, s.layout())
	require.True(t, s.Contains("1"))
	require.False(t, s.Contains("11"))
	for _, k := range []string{"21", "31", "5", "15", "25", "35"} {
		require.True(t, s.Contains(k))
	}
	require.EqualValues(t, 7, s.Len())
	s.validate()
}

func TestRobinHoodDisplacement(t *testing.T) {
	s, err := NewRobinHood(Identity(10))
	require.NoError(t, err)

	require.True(t, s.Insert("5"))
	require.True(t, s.Insert("15"))
	for _, k := range []string{"1", "11", "21", "31"} {
		require.True(t, s.Insert(k))
	}
	require.Equal(t, []string{
		"_", "1/0", "11/1", "21/2", "31/3", "5/0", "15/1", "_", "_", "_",
	}, s.layout())

	// 41 has travelled further than 5 by the time it reaches slot 5, so it
	// takes the slot. 5 then passes 15, which is just as poor, and settles
	// in slot 7.
	require.True(t, s.Insert("41"))
	require.Equal(t, []string{
		"_", "1/0", "11/1", "21/2", "31/3", "41/4", "15/1", "5/2", "_", "_",
	}, s.layout())
	for _, k := range []string{"1", "11", "21", "31", "41", "5", "15"} {
		require.True(t, s.Contains(k))
	}
	s.validate()

	// Removing 41 shifts 15 and 5 back towards their home.
	require.True(t, s.Remove("41"))
	require.Equal(t, []string{
		"_", "1/0", "11/1", "21/2", "31/3", "15/0", "5/1", "_", "_", "_",
	}, s.layout())
	s.validate()
}

func TestRobinHoodDeleteAroundEnd(t *testing.T) {
	s, err := NewRobinHood(Constant(10, 8))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.True(t, s.Insert(strconv.Itoa(i)))
	}
	require.Equal(t, []string{
		"2/2", "3/3", "4/4", "_", "_", "_", "_", "_", "0/0", "1/1",
	}, s.layout())

	require.True(t, s.Remove("1"))
	require.Equal(t, []string{
		"3/2", "4/3", "_", "_", "_", "_", "_", "_", "0/0", "2/1",
	}, s.layout())

	require.True(t, s.Remove("0"))
	require.Equal(t, []string{
		"4/2", "_", "_", "_", "_", "_", "_", "_", "2/0", "3/1",
	}, s.layout())
	s.validate()
}

func TestRobinHoodFullTableRejectsWithoutMutation(t *testing.T) {
	s, err := NewRobinHood(Identity(5))
	require.NoError(t, err)
	for _, k := range []string{"0", "1", "5", "2", "3"} {
		require.True(t, s.Insert(k))
	}
	before := s.layout()

	// "10" is poorer than several occupants, so probing would displace them
	// if the insert were attempted.
	require.False(t, s.Insert("10"))
	require.Equal(t, before, s.layout())
	require.EqualValues(t, 5, s.Len())
	s.validate()
}

func TestRobinHoodSearchesCutOffEarly(t *testing.T) {
	// Fill the table with blocks of elements that share a home slot:
	//
	//   |--- block with home 0 ---| |--- block with home 5 ---| ...
	//
	// A lookup never has to run off the end of its block because at the
	// start of the next block the key being searched for is further from
	// home than the occupant.
	const elemsPerBlock = 5
	const numBlocks = 2000
	const numElems = numBlocks * elemsPerBlock

	s, err := NewRobinHood(Identity(numElems))
	require.NoError(t, err)

	value := func(block, elem int) string {
		return strconv.Itoa(block*elemsPerBlock + elem*numElems)
	}
	for block := 0; block < numBlocks; block++ {
		for elem := 0; elem < elemsPerBlock; elem++ {
			require.True(t, s.Insert(value(block, elem)))
		}
	}
	require.EqualValues(t, numElems, s.Len())
	require.EqualValues(t, elemsPerBlock-1, s.MaxProbeDistance())

	for block := 0; block < numBlocks; block++ {
		for elem := 0; elem < elemsPerBlock; elem++ {
			k := value(block, elem)
			_, probes, ok := s.find(s.home(k), k)
			require.True(t, ok)
			require.LessOrEqual(t, probes, elemsPerBlock)
		}
		for elem := elemsPerBlock; elem < 2*elemsPerBlock; elem++ {
			k := value(block, elem)
			_, probes, ok := s.find(s.home(k), k)
			require.False(t, ok)
			require.LessOrEqual(t, probes, elemsPerBlock+1)
		}
	}
}

func TestRobinHoodClone(t *testing.T) {
	s, err := NewRobinHood(Identity(10))
	require.NoError(t, err)
	for _, k := range []string{"1", "11", "21"} {
		require.True(t, s.Insert(k))
	}

	c := s.Clone()
	require.Equal(t, s.layout(), c.layout())
	require.EqualValues(t, s.Len(), c.Len())
	c.validate()

	require.True(t, c.Remove("1"))
	require.True(t, c.Insert("31"))
	require.Equal(t, []string{"_", "1/0", "11/1", "21/2", "_", "_", "_", "_", "_", "_"}, s.layout())
	require.Equal(t, []string{"_", "11/0", "21/1", "31/2", "_", "_", "_", "_", "_", "_"}, c.layout())
	s.validate()
	c.validate()
}

func TestRobinHoodDebugString(t *testing.T) {
	s, err := NewRobinHood(Identity(4))
	require.NoError(t, err)
	require.True(t, s.Insert("1"))
	require.True(t, s.Insert("5"))

	expected := "capacity=4  used=2\n" +
		"     0: empty\n" +
		"     1: \"1\" [dist=0]\n" +
		"     2: \"5\" [dist=1]\n" +
		"     3: empty\n"
	require.Equal(t, expected, s.DebugString())

	var buf bytes.Buffer
	require.NoError(t, s.PrintDebugInfo(&buf))
	require.Equal(t, expected, buf.String())
}

func TestRobinHoodValidateDetectsCorruption(t *testing.T) {
	s, err := NewRobinHood(Identity(10))
	require.NoError(t, err)
	require.True(t, s.Insert("1"))
	require.True(t, s.Insert("11"))
	s.validate()

	s.slots[2].dist = 0
	require.Panics(t, s.validate)
	s.slots[2].dist = 1
	s.validate()

	s.used++
	require.Panics(t, s.validate)
}
