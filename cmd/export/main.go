// Command export prints the public feed for a cache snapshot without running
// the service. It loads the snapshot file, applies the same live-event filter
// the /api/export endpoint uses, and writes the JSON array to stdout.
//
// Usage:
//
//	go run ./cmd/export -snapshot data/events_snapshot.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-aggregator/internal/observability"
	"github.com/couchcryptid/crisis-aggregator/internal/store"
)

func main() {
	snapshotPath := flag.String("snapshot", "data/events_snapshot.json", "path to the cache snapshot file")
	flag.Parse()

	if err := run(*snapshotPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(1)
	}
}

func run(snapshotPath string, out io.Writer) error {
	st := store.New(store.Options{
		SnapshotPath:    snapshotPath,
		StalenessWindow: 24 * time.Hour,
		ArchiveWindow:   72 * time.Hour,
		RetentionWindow: 720 * time.Hour,
	}, clockwork.NewRealClock(),
		observability.NewMetrics(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := st.LoadSnapshot(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st.Export())
}
