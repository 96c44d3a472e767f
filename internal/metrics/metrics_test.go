package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Chunk("trash", OutcomeBulk, 20*time.Millisecond)
	r.Chunk("trash", OutcomeBulk, 20*time.Millisecond)
	r.Chunk("trash", OutcomeFallback, time.Second)
	r.Processed("trash", 1500)
	r.Processed("trash", 0)
	r.ItemFailed("trash")
	r.Retry("batch")

	if got := testutil.ToFloat64(r.chunks.WithLabelValues("trash", OutcomeBulk)); got != 2 {
		t.Fatalf("bulk chunks = %v", got)
	}
	if got := testutil.ToFloat64(r.processed.WithLabelValues("trash")); got != 1500 {
		t.Fatalf("processed = %v", got)
	}
	if got := testutil.ToFloat64(r.itemErrors.WithLabelValues("trash")); got != 1 {
		t.Fatalf("item errors = %v", got)
	}
	if got := testutil.ToFloat64(r.retries.WithLabelValues("batch")); got != 1 {
		t.Fatalf("retries = %v", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Chunk("delete", OutcomeFatal, time.Second)
	r.Processed("delete", 3)
	r.ItemFailed("delete")
	r.Retry("list")
	if err := r.WriteTextfile("ignored.prom"); err != nil {
		t.Fatalf("nil recorder write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Processed("delete", 7)
	path := filepath.Join(t.TempDir(), "mailpurge.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `mailpurge_messages_processed_total{action="delete"} 7`) {
		t.Fatalf("textfile missing counter:\n%s", data)
	}
}
