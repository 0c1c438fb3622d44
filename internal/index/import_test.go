package index

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lyriscope/internal/services"
)

type stubEncoder struct {
	dims  int
	calls atomic.Int64
	fn    func(texts []string) ([][]float32, error)
}

func (s *stubEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	return s.fn(texts)
}

func (s *stubEncoder) Dimension() int { return s.dims }

func TestReadRecordsParsesJSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"path":"a.jpg","vector":[1,0]}`,
		``,
		`# comment line`,
		`{"path":"b.jpg","text":"a red sunset over water","label":"sunset"}`,
	}, "\n")

	records, err := ReadRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Path != "a.jpg" || len(records[0].Vector) != 2 {
		t.Fatalf("unexpected first record: %#v", records[0])
	}
	if records[1].Text == "" || records[1].Label != "sunset" {
		t.Fatalf("unexpected second record: %#v", records[1])
	}
}

func TestReadRecordsRejectsMalformedLine(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader("{not json}")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveEncodesMissingVectors(t *testing.T) {
	encoder := &stubEncoder{dims: 2}
	encoder.fn = func(texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i := range texts {
			vecs[i] = []float32{float32(len(texts[i])), 1}
		}
		return vecs, nil
	}

	importer := &Importer{Encoder: encoder}
	entries, stats, err := importer.Resolve(context.Background(), []Record{
		{Path: "pre.jpg", Vector: []float32{9, 9}},
		{Path: "text.jpg", Text: "a dog"},
		{Path: "", Text: "orphan"},
		{Path: "empty.jpg"},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if stats.Total != 4 || stats.Encoded != 1 || stats.Skipped != 2 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 resolved entries, got %d", len(entries))
	}
	if entries[0].Path != "pre.jpg" || entries[0].Vector[0] != 9 {
		t.Fatalf("pre-computed entry mangled: %#v", entries[0])
	}
	if entries[1].Path != "text.jpg" || len(entries[1].Vector) != 2 {
		t.Fatalf("encoded entry missing vector: %#v", entries[1])
	}
}

func TestResolveBatchesEncodeCalls(t *testing.T) {
	encoder := &stubEncoder{dims: 1}
	encoder.fn = func(texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i := range texts {
			vecs[i] = []float32{1}
		}
		return vecs, nil
	}

	records := make([]Record, 10)
	for i := range records {
		records[i] = Record{Path: "img.jpg", Text: "text"}
	}

	importer := &Importer{Encoder: encoder, BatchSize: 4, Parallelism: 2}
	entries, _, err := importer.Resolve(context.Background(), records)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	if got := encoder.calls.Load(); got != 3 {
		t.Fatalf("expected 3 encode batches for 10 records at size 4, got %d", got)
	}
}

func TestResolveRetriesTransientEncodeFailure(t *testing.T) {
	encoder := &stubEncoder{dims: 1}
	encoder.fn = func(texts []string) ([][]float32, error) {
		if encoder.calls.Load() == 1 {
			return nil, services.Wrap(services.ErrTransient, "embedding", "encode", "rate limited", nil)
		}
		vecs := make([][]float32, len(texts))
		for i := range texts {
			vecs[i] = []float32{1}
		}
		return vecs, nil
	}

	importer := &Importer{Encoder: encoder, retryPause: time.Millisecond}
	entries, _, err := importer.Resolve(context.Background(), []Record{{Path: "a.jpg", Text: "a text"}})
	if err != nil {
		t.Fatalf("Resolve failed despite retry: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := encoder.calls.Load(); got != 2 {
		t.Fatalf("expected 2 encode calls, got %d", got)
	}
}

func TestResolveDoesNotRetryValidationFailure(t *testing.T) {
	encoder := &stubEncoder{dims: 1}
	encoder.fn = func([]string) ([][]float32, error) {
		return nil, services.Wrap(services.ErrValidation, "embedding", "encode", "bad input", nil)
	}

	importer := &Importer{Encoder: encoder, retryPause: time.Millisecond}
	_, _, err := importer.Resolve(context.Background(), []Record{{Path: "a.jpg", Text: "a text"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := encoder.calls.Load(); got != 1 {
		t.Fatalf("expected a single encode call, got %d", got)
	}
}

func TestResolveWithoutEncoderRequiresVectors(t *testing.T) {
	importer := &Importer{}
	if _, _, err := importer.Resolve(context.Background(), []Record{{Path: "a.jpg", Text: "needs encoding"}}); err == nil {
		t.Fatal("expected error when texts need encoding without an encoder")
	}
}

func TestPointIDStableForPath(t *testing.T) {
	a := pointID("images/one.jpg")
	b := pointID("images/one.jpg")
	c := pointID("images/two.jpg")
	if a != b {
		t.Fatalf("pointID not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("distinct paths produced identical ids")
	}
}
