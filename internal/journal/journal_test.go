package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestRecordAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Record("acct-1", KindCycle, map[string]int{"planted": 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Record("acct-2", KindSession, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "journal-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("journal files: %v %v", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var entries []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line: %v", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: %d", len(entries))
	}
	if entries[0].Account != "acct-1" || entries[0].Kind != KindCycle {
		t.Fatalf("first entry: %+v", entries[0])
	}
	if entries[0].Time == "" {
		t.Fatalf("entry missing timestamp")
	}
}

func TestNilWriterDiscards(t *testing.T) {
	var w *Writer
	if err := w.Record("acct", KindStatus, nil); err != nil {
		t.Fatalf("nil writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
