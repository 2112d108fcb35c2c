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

package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/probeset"
	"github.com/cockroachdb/probeset/internal/log"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

var benchTables = []string{"linear", "robinhood"}

// benchResult holds the average cost of each operation for one table at one
// load factor.
type benchResult struct {
	Table      string  `json:"table"`
	LoadFactor float64 `json:"load_factor"`
	Slots      int     `json:"slots"`
	Keys       int     `json:"keys"`
	Insert     float64 `json:"insert_ns"`
	InsertFail float64 `json:"insert_fail_ns"`
	Hit        float64 `json:"hit_ns"`
	Miss       float64 `json:"miss_ns"`
	Remove     float64 `json:"remove_ns"`
	RemoveFail float64 `json:"remove_fail_ns"`
	// MaxProbeDistance is only reported for Robin Hood tables.
	MaxProbeDistance int `json:"max_probe_distance,omitempty"`
}

func runBench(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("bench", flag.ContinueOnError)
	loadsFlag := flags.String("loads", "0.5,0.7,0.9", "comma separated load factors")
	keys := flags.Int("keys", 100000, "number of keys inserted into each table")
	asJSON := flags.Bool("json", false, "print results as JSON")
	verbose := flags.Bool("v", false, "log progress")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if err := initLogger(*verbose, "bench"); err != nil {
		return err
	}
	defer func() { _ = log.Logger.Sync() }()

	loads, err := parseLoads(*loadsFlag)
	if err != nil {
		return err
	}
	if *keys <= 0 {
		return fmt.Errorf("-keys must be positive, got %d", *keys)
	}

	results, err := bench(loads, *keys)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, results)
	}
	return writeTable(stdout, results)
}

// parseLoads parses a comma separated list of load factors in (0, 1].
func parseLoads(s string) ([]float64, error) {
	var loads []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid load factor %q: %w", f, err)
		}
		if v <= 0 || v > 1 {
			return nil, fmt.Errorf("load factor %v is outside of (0, 1]", v)
		}
		loads = append(loads, v)
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("no load factors in %q", s)
	}
	return loads, nil
}

func bench(loads []float64, numKeys int) ([]benchResult, error) {
	keys := make([]string, numKeys)
	misses := make([]string, numKeys)
	for i := range keys {
		keys[i] = "key" + strconv.Itoa(i)
		misses[i] = "miss" + strconv.Itoa(i)
	}

	var results []benchResult
	for _, load := range loads {
		slots := int(float64(numKeys) / load)
		for _, kind := range benchTables {
			set, err := newSet(kind, probeset.Random(slots))
			if err != nil {
				return nil, err
			}
			res := benchResult{Table: kind, LoadFactor: load, Slots: slots, Keys: numKeys}
			if err := benchSet(&res, set, keys, misses); err != nil {
				return nil, fmt.Errorf("%s at load %.2f: %w", kind, load, err)
			}
			log.Logger.Info("bench",
				zap.String("table", kind),
				zap.Float64("load", load),
				zap.Float64("insert_ns", res.Insert),
				zap.Float64("insert_fail_ns", res.InsertFail),
				zap.Float64("hit_ns", res.Hit),
				zap.Float64("miss_ns", res.Miss),
				zap.Float64("remove_ns", res.Remove),
				zap.Float64("remove_fail_ns", res.RemoveFail))
			results = append(results, res)
		}
	}
	return results, nil
}

// benchSet times every operation of an empty set, filling in res. keys must
// fit in the set and misses must be disjoint from keys. Every operation is
// checked, and the first unexpected result is returned as an error.
func benchSet(res *benchResult, set probeset.Set, keys, misses []string) error {
	var err error
	if res.Insert, err = timeOps("insert", keys, set.Insert, true); err != nil {
		return err
	}
	shuffled := slices.Clone(keys)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if res.InsertFail, err = timeOps("insert", shuffled, set.Insert, false); err != nil {
		return err
	}
	if set.Len() != len(keys) {
		return fmt.Errorf("inserted %d of %d keys into %d slots", set.Len(), len(keys), set.Capacity())
	}
	if res.Hit, err = timeOps("contains", keys, set.Contains, true); err != nil {
		return err
	}
	if res.Miss, err = timeOps("contains", misses, set.Contains, false); err != nil {
		return err
	}
	if rh, ok := set.(*probeset.RobinHood); ok {
		res.MaxProbeDistance = rh.MaxProbeDistance()
	}
	if res.RemoveFail, err = timeOps("remove", misses, set.Remove, false); err != nil {
		return err
	}
	if res.Remove, err = timeOps("remove", keys, set.Remove, true); err != nil {
		return err
	}
	if !set.Empty() {
		return fmt.Errorf("%d keys left after removing all of them", set.Len())
	}
	return nil
}

// timeOps returns the average time in nanoseconds of applying op to each
// key. It stops at the first key for which op does not return want.
func timeOps(name string, keys []string, op func(key string) bool, want bool) (float64, error) {
	start := time.Now()
	for _, k := range keys {
		if op(k) != want {
			return 0, fmt.Errorf("%s(%q) = %t, expected %t", name, k, !want, want)
		}
	}
	return float64(time.Since(start).Nanoseconds()) / float64(len(keys)), nil
}

func writeJSON(w io.Writer, results []benchResult) error {
	buf, err := sonnet.Marshal(results)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", buf)
	return err
}

func writeTable(w io.Writer, results []benchResult) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "table\tload\tslots\tinsert\tinsert fail\thit\tmiss\tremove\tremove fail\tmax dist\t")
	for _, r := range results {
		dist := "-"
		if r.Table == "robinhood" {
			dist = strconv.Itoa(r.MaxProbeDistance)
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%.1fns\t%.1fns\t%.1fns\t%.1fns\t%.1fns\t%.1fns\t%s\t\n",
			r.Table, r.LoadFactor, r.Slots, r.Insert, r.InsertFail, r.Hit, r.Miss,
			r.Remove, r.RemoveFail, dist)
	}
	return tw.Flush()
}
