// fleet-journal reads the fleet's compressed activity journals and prints
// matching entries, or a per-account summary of what the fleet got done.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"farmfleet.dev/internal/journal"
)

func main() {
	var (
		dir     = flag.String("dir", "./journal", "journal directory")
		account = flag.String("account", "", "only this account (optional)")
		kind    = flag.String("kind", "", "only this entry kind (session, cycle, visit, sale, daily)")
		summary = flag.Bool("summary", false, "print per-account entry counts instead of entries")
	)
	flag.Parse()

	files, err := listJournalFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journals:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *dir)
		os.Exit(1)
	}

	counts := make(map[string]map[string]int)
	var total int
	for _, path := range files {
		err := scanFile(path, func(e journal.Entry) {
			if *account != "" && e.Account != *account {
				return
			}
			if *kind != "" && e.Kind != *kind {
				return
			}
			total++
			if *summary {
				if counts[e.Account] == nil {
					counts[e.Account] = make(map[string]int)
				}
				counts[e.Account][e.Kind]++
				return
			}
			printEntry(e)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if *summary {
		accounts := make([]string, 0, len(counts))
		for id := range counts {
			accounts = append(accounts, id)
		}
		sort.Strings(accounts)
		for _, id := range accounts {
			kinds := counts[id]
			names := make([]string, 0, len(kinds))
			for k := range kinds {
				names = append(names, k)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, k := range names {
				parts = append(parts, fmt.Sprintf("%s=%d", k, kinds[k]))
			}
			fmt.Printf("%s: %s\n", id, strings.Join(parts, " "))
		}
		fmt.Printf("total entries: %d\n", total)
	}
}

func printEntry(e journal.Entry) {
	if e.Data == nil {
		fmt.Printf("%s %s %s\n", e.Time, e.Account, e.Kind)
		return
	}
	data, _ := json.Marshal(e.Data)
	fmt.Printf("%s %s %s %s\n", e.Time, e.Account, e.Kind, data)
}

func listJournalFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "journal-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanFile(path string, fn func(journal.Entry)) error {
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
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e journal.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("bad journal line: %w", err)
		}
		fn(e)
	}
	return sc.Err()
}
