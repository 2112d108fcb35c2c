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

// Command probeset drives the probeset tables, either interactively or
// through a load factor benchmark.
//
//	probeset repl  [-table linear|robinhood] [-hash random|consistent|identity|zero] [-capacity N] [-v]
//	probeset bench [-loads 0.5,0.7,0.9] [-keys N] [-json] [-v]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/probeset"
	"github.com/cockroachdb/probeset/internal/log"
	"go.uber.org/zap"
)

const usage = `usage: probeset <command> [flags]

commands:
  repl   interactively insert, look up and remove keys
  bench  time table operations at a range of load factors

Run "probeset <command> -h" for the flags of a command.
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "probeset: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "repl":
		return runRepl(args[1:], stdin, stdout)
	case "bench":
		return runBench(args[1:], stdout)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

// newHash returns the named hash function over capacity slots.
func newHash(name string, capacity int) (probeset.HashFunction, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", probeset.ErrInvalidCapacity, capacity)
	}
	switch name {
	case "random":
		return probeset.Random(capacity), nil
	case "consistent":
		return probeset.ConsistentRandom(capacity), nil
	case "identity":
		return probeset.Identity(capacity), nil
	case "zero":
		return probeset.Zero(capacity), nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}

// newSet returns an empty set of the named kind.
func newSet(kind string, hash probeset.HashFunction) (probeset.Set, error) {
	switch kind {
	case "linear":
		s, err := probeset.NewLinearProbing(hash, probeset.WithLogger(log.Logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "robinhood":
		s, err := probeset.NewRobinHood(hash, probeset.WithLogger(log.Logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown table %q", kind)
	}
}

// initLogger initializes the process logger, announcing the command being
// run at debug level.
func initLogger(verbose bool, command string) error {
	if err := log.InitLogger(verbose); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log.Logger.Debug("starting", zap.String("command", command))
	return nil
}
