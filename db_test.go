package pagedb

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
)

func TestDB_CreateInsertSearchDelete(t *testing.T) {
	db, err := CreateInMemory(1<<20, 8)
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	defer db.Close()

	if err := db.Insert([]byte("hello"), []byte("world")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok, err := db.Search([]byte("hello"))
	if err != nil || !ok {
		t.Fatalf("Search = %v, %v, %v", v, ok, err)
	}
	if string(v) != "world" {
		t.Errorf("Search = %q, want %q", v, "world")
	}

	deleted, err := db.Delete([]byte("hello"))
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if _, ok, _ := db.Search([]byte("hello")); ok {
		t.Errorf("Search after delete found a value")
	}
}

func TestDB_OperationsAfterCloseFail(t *testing.T) {
	db, err := CreateInMemory(1<<20, 8)
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Insert([]byte("a"), []byte("b")); err != ErrClosed {
		t.Errorf("Insert after Close = %v, want ErrClosed", err)
	}
	if _, _, err := db.Search([]byte("a")); err != ErrClosed {
		t.Errorf("Search after Close = %v, want ErrClosed", err)
	}
	if _, err := db.Delete([]byte("a")); err != ErrClosed {
		t.Errorf("Delete after Close = %v, want ErrClosed", err)
	}
	// Close itself must be idempotent.
	if err := db.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

// S6/S7: close after a batch of writes, reopen, and confirm every query
// still gives the same answer.
func TestDB_CloseReopenDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durability.db")

	rng := rand.New(rand.NewSource(7))
	want := map[string]string{}

	db, err := Create(path, 4<<20, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("%08d", rng.Intn(1000000))
		v := fmt.Sprintf("value-%d", rng.Int())
		want[k] = v
		if err := db.Insert([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	for k, v := range want {
		got, ok, err := reopened.Search([]byte(k))
		if err != nil || !ok {
			t.Fatalf("Search(%s) after reopen = %v, %v, %v, want found", k, got, ok, err)
		}
		if string(got) != v {
			t.Errorf("Search(%s) after reopen = %q, want %q", k, got, v)
		}
	}
	if _, ok, _ := reopened.Search([]byte("doesnotexist")); ok {
		t.Errorf("Search(doesnotexist) after reopen found a value")
	}
}

func TestDB_Stats(t *testing.T) {
	db, err := CreateInMemory(1<<20, 8)
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	defer db.Close()

	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("%08d", i)
		if err := db.Insert([]byte(k), []byte("v")); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.KeyCount != 50 {
		t.Errorf("Stats.KeyCount = %d, want 50", stats.KeyCount)
	}
	if stats.Height < 1 {
		t.Errorf("Stats.Height = %d, want >= 1", stats.Height)
	}
	if stats.Fanout < 2 {
		t.Errorf("Stats.Fanout = %d, too small", stats.Fanout)
	}
}

type recordingLogger struct{ lines []string }

func (r *recordingLogger) Printf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestDB_PrintUsesInjectedLogger(t *testing.T) {
	rec := &recordingLogger{}
	db, err := CreateInMemory(1<<20, 4, WithLogger(rec))
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	defer db.Close()

	if err := db.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	db.Print()

	if len(rec.lines) == 0 {
		t.Errorf("Print() wrote nothing to the injected logger")
	}
}
