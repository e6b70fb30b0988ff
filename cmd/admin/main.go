package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelspawn.ai/internal/spawn/placement"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "logs":
			logsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "reload":
			reloadCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world name (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// logsCmd prints placement entries from the compressed JSONL logs, oldest
// file first.
func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "overworld", "world name")
	actor := fs.String("actor", "", "actor id filter")
	failedOnly := fs.Bool("failed", false, "only unsuccessful placements")
	summary := fs.Bool("summary", false, "print outcome counts instead of entries")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, "placements")
	filter := func(e placement.Entry) bool {
		if *actor != "" && e.ActorID != *actor {
			return false
		}
		if *failedOnly && e.OK {
			return false
		}
		return true
	}

	counts := map[placement.Outcome]int{}
	err := readPlacementLogs(dir, func(e placement.Entry) {
		if !filter(e) {
			return
		}
		if *summary {
			counts[e.Outcome]++
			return
		}
		printJSON(e)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read logs:", err)
		os.Exit(1)
	}
	if *summary {
		printJSON(counts)
	}
}

func readPlacementLogs(dir string, fn func(placement.Entry)) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "placements-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := readPlacementFile(filepath.Join(dir, name), fn); err != nil {
			return err
		}
	}
	return nil
}

func readPlacementFile(path string, fn func(placement.Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e placement.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(e)
	}
	// A file still being written may end mid-frame.
	if err := sc.Err(); err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
