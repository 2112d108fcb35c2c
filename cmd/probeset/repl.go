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
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/probeset"
	"github.com/cockroachdb/probeset/internal/log"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"go.uber.org/zap"
)

const (
	replPrompt         = "probeset> "
	replHistoryFileEnv = "PROBESET_HISTFILE"
	replHistoryDefault = ".probeset_history"
)

const replHelp = `commands:
  insert <key>    add key to the set
  contains <key>  report whether key is in the set
  remove <key>    delete key from the set
  size            number of keys in the set
  empty           whether the set is empty
  keys            list the keys in slot order
  dump            show the contents of every slot
  clear           remove every key
  help            show this message
  quit            leave
`

var replCommands = []string{
	"clear", "contains", "dump", "empty", "help", "insert", "keys", "quit", "remove", "size",
}

var errMissingKey = errors.New("missing key")

type repl struct {
	set probeset.Set
	out io.Writer
}

func runRepl(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("repl", flag.ContinueOnError)
	table := flags.String("table", "linear", "collision resolution: linear or robinhood")
	hashName := flags.String("hash", "random", "hash function: random, consistent, identity or zero")
	capacity := flags.Int("capacity", 10, "number of slots")
	verbose := flags.Bool("v", false, "log probe traces")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if err := initLogger(*verbose, "repl"); err != nil {
		return err
	}
	defer func() { _ = log.Logger.Sync() }()

	hash, err := newHash(*hashName, *capacity)
	if err != nil {
		return err
	}
	set, err := newSet(*table, hash)
	if err != nil {
		return err
	}
	r := &repl{set: set, out: stdout}

	if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintf(stdout, "%s table with %d slots. Type \"help\" for commands.\n", *table, set.Capacity())
		return r.interactive()
	}
	return r.batch(stdin)
}

// interactive reads commands from the terminal with line editing and
// persistent history.
func (r *repl) interactive() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(history)
		if err != nil {
			log.Logger.Warn("saving history", zap.String("path", history), zap.Error(err))
			return
		}
		defer f.Close()
		if _, err := line.WriteHistory(f); err != nil {
			log.Logger.Warn("saving history", zap.String("path", history), zap.Error(err))
		}
	}()

	for {
		input, err := line.Prompt(replPrompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)
		if r.execLine(input) {
			return nil
		}
	}
}

// batch executes one command per line of in.
func (r *repl) batch(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := scanner.Text()
		if strings.TrimSpace(input) == "" {
			continue
		}
		if r.execLine(input) {
			return nil
		}
	}
	return scanner.Err()
}

// execLine runs a single command, reporting errors to the user rather than
// aborting. It returns true when the user asked to quit.
func (r *repl) execLine(input string) (quit bool) {
	quit, err := r.exec(input)
	if err != nil {
		fmt.Fprintf(r.out, "(error) %v\n", err)
	}
	return quit
}

func (r *repl) exec(input string) (quit bool, err error) {
	cmd, key, _ := strings.Cut(strings.TrimSpace(input), " ")
	key = strings.TrimSpace(key)
	cmd = strings.ToLower(cmd)

	switch cmd {
	case "insert", "add":
		if key == "" {
			return false, errMissingKey
		}
		switch {
		case r.set.Insert(key):
			fmt.Fprintf(r.out, "inserted %q\n", key)
		case r.set.Contains(key):
			fmt.Fprintf(r.out, "%q is already present\n", key)
		default:
			fmt.Fprintf(r.out, "table is full (%d/%d)\n", r.set.Len(), r.set.Capacity())
		}
	case "contains", "has":
		if key == "" {
			return false, errMissingKey
		}
		fmt.Fprintln(r.out, r.set.Contains(key))
	case "remove", "rm":
		if key == "" {
			return false, errMissingKey
		}
		if r.set.Remove(key) {
			fmt.Fprintf(r.out, "removed %q\n", key)
		} else {
			fmt.Fprintf(r.out, "%q is not present\n", key)
		}
	case "size", "len":
		fmt.Fprintln(r.out, r.set.Len())
	case "empty":
		fmt.Fprintln(r.out, r.set.Empty())
	case "keys":
		r.set.All(func(k string) bool {
			fmt.Fprintf(r.out, "%q\n", k)
			return true
		})
	case "dump":
		return false, r.set.PrintDebugInfo(r.out)
	case "clear":
		r.set.Clear()
	case "help", "?":
		fmt.Fprint(r.out, replHelp)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type \"help\" for commands", cmd)
	}
	return false, nil
}

// complete returns the commands that start with line.
func complete(line string) []string {
	var r []string
	prefix := strings.ToLower(line)
	for _, c := range replCommands {
		if strings.HasPrefix(c, prefix) {
			r = append(r, c)
		}
	}
	sort.Strings(r)
	return r
}

func historyPath() string {
	if p := os.Getenv(replHistoryFileEnv); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return replHistoryDefault
	}
	return filepath.Join(home, replHistoryDefault)
}
