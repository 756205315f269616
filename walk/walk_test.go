package walk_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/quietloop/vaultpipe/queue"
	"github.com/quietloop/vaultpipe/walk"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func drain(t *testing.T, q *queue.Bounded) []string {
	t.Helper()
	var got []string
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, item.(walk.Job).RelPath)
	}
	sort.Strings(got)
	return got
}

func TestWalkEmitsEveryRegularFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.txt"), "c")

	q := queue.New(16)
	q.Open()

	w := walk.New(root, "", nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), q) }()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	q.Close()

	got := drain(t, q)
	want := []string{"a.txt", filepath.Join("sub", "b.txt"), filepath.Join("sub", "deeper", "c.txt")}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWalkPrefixFiltersFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "x.txt"), "x")
	writeFile(t, filepath.Join(root, "skip", "y.txt"), "y")

	q := queue.New(16)
	q.Open()

	w := walk.New(root, "keep", nil)
	if err := w.Run(context.Background(), q); err != nil {
		t.Fatalf("Run: %v", err)
	}
	q.Close()

	got := drain(t, q)
	if len(got) != 1 || got[0] != filepath.Join("keep", "x.txt") {
		t.Fatalf("got %v, want [keep/x.txt]", got)
	}
}

func TestWalkCustomFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "a.log"), "log")

	q := queue.New(16)
	q.Open()

	onlyTxt := func(rel string, _ os.FileInfo) bool {
		return filepath.Ext(rel) == ".txt"
	}
	w := walk.New(root, "", onlyTxt)
	if err := w.Run(context.Background(), q); err != nil {
		t.Fatalf("Run: %v", err)
	}
	q.Close()

	got := drain(t, q)
	if len(got) != 1 || got[0] != "a.txt" {
		t.Fatalf("got %v, want [a.txt]", got)
	}
}

func TestWalkCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(root, "d", string(rune('a'+i))+".txt"), "x")
	}

	q := queue.New(1)
	q.Open()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := walk.New(root, "", nil)
	err := w.Run(ctx, q)
	if err == nil {
		t.Fatal("expected Run to report cancellation")
	}
}
