package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"lyriscope/internal/index"
)

// WriteRecordsJSONL writes index import records to path, one JSON object per
// line, creating parent directories as needed.
func WriteRecordsJSONL(t testing.TB, path string, records []index.Record) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			t.Fatalf("encode record for %s: %v", path, err)
		}
	}
}
