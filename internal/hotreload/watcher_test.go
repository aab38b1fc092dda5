package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestMatchers(t *testing.T) {
	under := MatchUnder("/games")
	if !under("/games/Hero/RPG_RT.ldb") || !under("/games") || under("/gamesx/a") {
		t.Fatalf("MatchUnder")
	}
	if !MatchBase("*.json")("/a/b/button_mapping.json") || MatchBase("*.json")("/a/b.yaml") {
		t.Fatalf("MatchBase")
	}
}

func TestDebounceBatchesAndFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebounceTime = time.Hour
	w, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	var games, layouts []Event
	w.RegisterHandler("library", MatchUnder("/games"), func(_ context.Context, e Event) error {
		games = append(games, e)
		return nil
	})
	w.RegisterHandler("layouts", MatchBase("button_mapping.json"), func(_ context.Context, e Event) error {
		layouts = append(layouts, e)
		return nil
	})
	ctx := context.Background()
	for _, ev := range []fsnotify.Event{
		{Name: "/games/Hero", Op: fsnotify.Write},
		{Name: "/games/Hero", Op: fsnotify.Write},
		{Name: "/games/New", Op: fsnotify.Remove},
		{Name: "/games/Hero/.gamebrowser-write-1", Op: fsnotify.Create},
		{Name: "/games/Hero/easyrpg.json", Op: fsnotify.Write},
		{Name: "/games/Hero/x", Op: fsnotify.Chmod},
		{Name: "/data/button_mapping.json", Op: fsnotify.Write},
	} {
		w.handleFileEvent(ctx, ev)
	}
	w.Flush(ctx)
	if len(games) != 1 || !reflect.DeepEqual(games[0].Paths, []string{"/games/Hero", "/games/New"}) {
		t.Fatalf("library events = %+v", games)
	}
	if len(layouts) != 1 || len(layouts[0].Paths) != 1 {
		t.Fatalf("layout events = %+v", layouts)
	}
	w.Flush(ctx)
	if len(games) != 1 {
		t.Fatalf("empty flush dispatched")
	}
}

func TestWatchesRealFolder(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "Hero"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Dirs = []string{root}
	cfg.DebounceTime = 20 * time.Millisecond
	w, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	fired := make(chan Event, 4)
	w.RegisterHandler("library", MatchUnder(root), func(_ context.Context, e Event) error {
		fired <- e
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatalf("second Start must fail")
	}
	if err := os.WriteFile(filepath.Join(root, "Hero", "RPG_RT.ldb"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-fired:
		if len(e.Paths) == 0 {
			t.Fatalf("empty event")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event delivered")
	}
}
