// Package backup snapshots a key range to a CSV file so a mutating bulk job
// can be undone by hand if its transform turns out to be wrong.
package backup

import (
	"encoding/csv"
	"fmt"
	"os"

	"kvedit/internal/store"
)

// WriteCSV scans the range through its own snapshot and writes key,value
// rows with a header. Returns the number of records written.
func WriteCSV(st store.Store, cf string, r store.KeyRange, path string, sep rune) (int, error) {
	scan, err := st.NewSnapshotScan(cf, r)
	if err != nil {
		return 0, err
	}
	defer scan.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if sep != 0 {
		w.Comma = sep
	}
	if err := w.Write([]string{"key", "value"}); err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	n := 0
	for scan.Next() {
		if err := w.Write([]string{string(scan.Key()), string(scan.Value())}); err != nil {
			return n, fmt.Errorf("backup: %w", err)
		}
		n++
	}
	if err := scan.Err(); err != nil {
		return n, fmt.Errorf("backup: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, fmt.Errorf("backup: %w", err)
	}
	return n, f.Sync()
}
