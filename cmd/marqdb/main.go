// Command marqdb is the interactive shell over the storage engine. It reads
// one statement per line; lines starting with '.' are meta commands.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/markmorcos/marqdb/internal/config"
	"github.com/markmorcos/marqdb/internal/engine"
)

var (
	flagDB     = flag.String("db", "", "database file path (':memory:' for an in-memory database)")
	flagCache  = flag.Int("cache-pages", 0, "buffer pool capacity in frames (0 = default)")
	flagConfig = flag.String("config", "", "config file (default: ./marqdb.yaml if present)")
	flagEcho   = flag.Bool("echo", false, "echo statements before executing them")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marqdb:", err)
		os.Exit(1)
	}
	if *flagDB != "" {
		cfg.Path = *flagDB
	}
	if *flagCache != 0 {
		cfg.CachePages = *flagCache
	}
	if *flagEcho {
		cfg.Echo = true
	}

	eng, err := engine.Open(engine.Options{
		Path:       cfg.Path,
		CachePages: cfg.CachePages,
		Out:        os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "marqdb:", err)
		os.Exit(1)
	}
	defer eng.Close()

	if interactive() {
		runInteractive(eng, cfg)
		return
	}
	runScript(eng, cfg, os.Stdin)
}

func interactive() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// runInteractive drives the shell with line editing and history.
func runInteractive(eng *engine.Engine, cfg config.Config) {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	for {
		line, err := ln.Prompt(cfg.Prompt)
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			return
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if quit := dispatch(eng, cfg, line); quit {
			return
		}
	}
}

// runScript executes statements from r without prompts, for piped input.
func runScript(eng *engine.Engine, cfg config.Config, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024), 1024*1024)
	for sc.Scan() {
		if quit := dispatch(eng, cfg, sc.Text()); quit {
			return
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
	}
}

// dispatch runs one input line and reports whether the shell should exit.
func dispatch(eng *engine.Engine, cfg config.Config, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, ".") {
		return metaCommand(eng, trimmed)
	}
	if cfg.Echo {
		fmt.Println(trimmed)
	}
	if err := eng.Execute(trimmed); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return false
}

func metaCommand(eng *engine.Engine, cmd string) bool {
	switch cmd {
	case ".exit", ".quit":
		return true
	case ".help":
		fmt.Print(helpText)
	case ".tables":
		names, err := eng.Tables()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return false
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case ".stats":
		st := eng.Stats()
		fmt.Printf("hits=%d misses=%d evictions=%d writebacks=%d\n",
			st.Hits, st.Misses, st.Evictions, st.WriteBacks)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s (try .help)\n", cmd)
	}
	return false
}

const helpText = `statements:
  CREATE TABLE name (col INT|TEXT, ...)
  INSERT INTO name VALUES (v, ...)
  SELECT * FROM name [WHERE col =|<|> val]
  UPDATE name SET col = val [WHERE ...]
  DELETE FROM name WHERE ...
  VACUUM name
meta commands:
  .tables    list tables
  .stats     buffer pool counters
  .help      this text
  .exit      quit (also .quit)
`
