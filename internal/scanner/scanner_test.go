package scanner

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cuihairu/gamebrowser/internal/cache"
	"github.com/cuihairu/gamebrowser/internal/classify"
	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/i18n"
	"github.com/cuihairu/gamebrowser/internal/thumbnail"
)

// countingProvider serves an fstest.MapFS as a writable tree and counts
// every call made against it.
type countingProvider struct {
	dirtree.FS
	calls      atomic.Int64
	unreadable map[dirtree.Ref]bool
	// denied refs exist but cannot be inspected.
	denied map[dirtree.Ref]bool
	// block, when set, is received from before List returns.
	block chan struct{}
}

func newProvider(files fstest.MapFS) *countingProvider {
	return &countingProvider{FS: dirtree.FS{FS: files}, unreadable: map[dirtree.Ref]bool{}, denied: map[dirtree.Ref]bool{}}
}

func (p *countingProvider) List(ctx context.Context, ref dirtree.Ref) ([]dirtree.Entry, error) {
	p.calls.Add(1)
	if p.block != nil {
		<-p.block
	}
	if p.unreadable[ref] {
		return nil, dirtree.ErrPermission
	}
	return p.FS.List(ctx, ref)
}

func (p *countingProvider) Stat(ctx context.Context, ref dirtree.Ref) (dirtree.Access, error) {
	p.calls.Add(1)
	if p.denied[ref] {
		return dirtree.Access{Exists: true}, dirtree.ErrPermission
	}
	a, err := p.FS.Stat(ctx, ref)
	if err != nil {
		return a, err
	}
	if p.unreadable[ref] {
		a.Readable = false
	}
	a.Writable = a.Exists
	return a, nil
}

func game(dir string) fstest.MapFS {
	return fstest.MapFS{
		dir + "/RPG_RT.ldb": {},
		dir + "/RPG_RT.lmt": {},
	}
}

func merge(parts ...fstest.MapFS) fstest.MapFS {
	out := fstest.MapFS{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

func titles(res Result) []string {
	var out []string
	for _, g := range res.Games {
		out = append(out, g.Title())
	}
	return out
}

func TestDepthAsymmetry(t *testing.T) {
	p := newProvider(merge(
		game("a/games/ProjectX"),
		game("a/games/deep/ProjectZ"),
		game("b/ProjectY"),
		game("b/nested/ProjectW"),
	))
	s := New(Options{Provider: p})
	res, err := s.Scan(context.Background(), []dirtree.Ref{"a", "b"}, false)
	if err != nil {
		t.Fatal(err)
	}
	got := titles(res)
	if len(got) != 2 || got[0] != "ProjectX" || got[1] != "ProjectY" {
		t.Fatalf("games = %v", got)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if s.State() != Done {
		t.Fatalf("state = %v", s.State())
	}
}

func TestRootItselfIsAGame(t *testing.T) {
	p := newProvider(game("Solo"))
	res, err := New(Options{Provider: p}).Scan(context.Background(), []dirtree.Ref{"Solo"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(res); len(got) != 1 || got[0] != "Solo" {
		t.Fatalf("games = %v", got)
	}
}

func TestHiddenFoldersSkipped(t *testing.T) {
	p := newProvider(merge(game("root/.trash/Old"), game("root/New")))
	res, _ := New(Options{Provider: p}).Scan(context.Background(), []dirtree.Ref{"root"}, false)
	if got := titles(res); len(got) != 1 || got[0] != "New" {
		t.Fatalf("games = %v", got)
	}
}

func TestUnreadableRootAndValidGame(t *testing.T) {
	p := newProvider(merge(fstest.MapFS{"locked/x": {}}, game("ok/Hero")))
	p.unreadable["locked"] = true
	msgs := i18n.New("en")
	res, err := New(Options{Provider: p, Messages: msgs}).Scan(context.Background(), []dirtree.Ref{"locked", "ok"}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := msgs.Format(i18n.RootNotReadable, "locked")
	if len(res.Errors) != 1 || res.Errors[0] != want {
		t.Fatalf("errors = %v, want [%q]", res.Errors, want)
	}
	if got := titles(res); len(got) != 1 || got[0] != "Hero" {
		t.Fatalf("games = %v", got)
	}
}

func TestMissingRootAndNoGames(t *testing.T) {
	p := newProvider(fstest.MapFS{"empty/readme.txt": {}})
	msgs := i18n.New("en")
	s := New(Options{Provider: p, Messages: msgs})
	res, err := s.Scan(context.Background(), []dirtree.Ref{"gone", "empty"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Games) != 0 || len(res.Errors) != 2 {
		t.Fatalf("res = %+v", res)
	}
	if res.Errors[0] != msgs.Format(i18n.RootMissing, "gone") || res.Errors[1] != msgs.Format(i18n.NoGamesFound, "") {
		t.Fatalf("errors = %v", res.Errors)
	}
	if s.State() != Done {
		t.Fatalf("one usable root means done, got %v", s.State())
	}
}

func TestAllRootsUnusableIsErrored(t *testing.T) {
	p := newProvider(fstest.MapFS{"file.txt": {}})
	s := New(Options{Provider: p})
	res, _ := s.Scan(context.Background(), []dirtree.Ref{"file.txt"}, false)
	if s.State() != Errored || len(res.Errors) != 2 {
		t.Fatalf("state=%v errors=%v", s.State(), res.Errors)
	}
	// errored results are not remembered
	before := p.calls.Load()
	_, _ = s.Scan(context.Background(), []dirtree.Ref{"file.txt"}, false)
	if p.calls.Load() == before {
		t.Fatalf("errored scan must not be cached")
	}
}

func TestCachedRescanMakesNoProviderCalls(t *testing.T) {
	p := newProvider(merge(game("root/A"), game("root/B")))
	s := New(Options{Provider: p})
	ctx := context.Background()
	roots := []dirtree.Ref{"root"}
	first, err := s.Scan(ctx, roots, false)
	if err != nil {
		t.Fatal(err)
	}
	before := p.calls.Load()
	second, err := s.Scan(ctx, roots, false)
	if err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != before {
		t.Fatalf("cached rescan made %d provider calls", p.calls.Load()-before)
	}
	if len(first.Games) != len(second.Games) {
		t.Fatalf("cached result differs")
	}
	for i := range first.Games {
		if first.Games[i] != second.Games[i] {
			t.Fatalf("cached entries must be identical")
		}
	}
	if _, err := s.Scan(ctx, roots, true); err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() == before {
		t.Fatalf("forced scan must touch the provider")
	}
	before = p.calls.Load()
	s.Invalidate()
	_, _ = s.Scan(ctx, roots, false)
	if p.calls.Load() == before {
		t.Fatalf("invalidated scan must touch the provider")
	}
	// different roots never hit the cache
	before = p.calls.Load()
	_, _ = s.Scan(ctx, []dirtree.Ref{"root/A"}, false)
	if p.calls.Load() == before {
		t.Fatalf("scan of other roots answered from cache")
	}
}

func TestSingleFlight(t *testing.T) {
	p := newProvider(game("root/A"))
	p.block = make(chan struct{})
	s := New(Options{Provider: p})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Scan(context.Background(), []dirtree.Ref{"root"}, false)
	}()
	for s.State() != Scanning {
		runtime.Gosched()
	}
	if _, err := s.Scan(context.Background(), []dirtree.Ref{"root"}, false); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
	close(p.block)
	wg.Wait()
	if s.State() != Done {
		t.Fatalf("state = %v", s.State())
	}
}

func TestSoundFontInFirstRootOnly(t *testing.T) {
	p := newProvider(merge(
		fstest.MapFS{"a/GM.SF2": {}, "b/other.sf2": {}},
		game("a/Hero"),
	))
	res, _ := New(Options{Provider: p}).Scan(context.Background(), []dirtree.Ref{"a", "b"}, false)
	if res.SoundFont != "a/GM.SF2" {
		t.Fatalf("soundfont = %q", res.SoundFont)
	}
}

type staticFavorites map[string]bool

func (f staticFavorites) Favorites(context.Context) (map[string]bool, error) { return f, nil }

func TestEntriesCarryFavoritesTypeAndTitleImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	png, err := thumbnail.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	files := merge(game("root/Hero"), fstest.MapFS{
		"root/Hero/Title/title.png": {Data: png},
		"root/Hero/RPG_RT.ini":      {Data: []byte("[RPG_RT]\nGameTitle=Hero\n")},
		"root/Wolf/Data.wolf":       {},
	})
	p := newProvider(files)
	res, _ := New(Options{Provider: p, Favorites: staticFavorites{"Hero": true}}).
		Scan(context.Background(), []dirtree.Ref{"root"}, false)
	if len(res.Games) != 2 {
		t.Fatalf("games = %v", titles(res))
	}
	byTitle := map[string]int{}
	for i, g := range res.Games {
		byTitle[g.Title()] = i
	}
	hero := res.Games[byTitle["Hero"]]
	if !hero.IsFavorite() || !hero.Launchable() || hero.TitleImage() == nil || hero.IniName() != "RPG_RT.ini" {
		t.Fatalf("hero = fav:%v launch:%v img:%v ini:%q", hero.IsFavorite(), hero.Launchable(), hero.TitleImage() != nil, hero.IniName())
	}
	wolf := res.Games[byTitle["Wolf"]]
	if wolf.ProjectType() != classify.WolfRpg || wolf.Launchable() {
		t.Fatalf("wolf = %v", wolf.ProjectType())
	}
}

func TestRestoreFromPersistentCache(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	store := cache.NewDBStore(db)
	ctx := context.Background()
	roots := []dirtree.Ref{"root"}

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	png, _ := thumbnail.EncodePNG(img)
	p := newProvider(merge(game("root/Hero"), fstest.MapFS{"root/Hero/Title/t.png": {Data: png}}))
	if _, err := New(Options{Provider: p, Cache: store}).Scan(ctx, roots, false); err != nil {
		t.Fatal(err)
	}

	fresh := newProvider(fstest.MapFS{})
	s := New(Options{Provider: fresh, Cache: store})
	res, ok, err := s.Restore(ctx, roots)
	if err != nil || !ok {
		t.Fatalf("restore ok=%v err=%v", ok, err)
	}
	if got := titles(res); len(got) != 1 || got[0] != "Hero" || res.Games[0].TitleImage() == nil {
		t.Fatalf("restored %v", got)
	}
	if res.Games[0].SavePath() != "root/Hero" {
		t.Fatalf("save path = %q", res.Games[0].SavePath())
	}
	// the restored result answers the next scan
	if _, err := s.Scan(ctx, roots, false); err != nil {
		t.Fatal(err)
	}
	if fresh.calls.Load() != 0 {
		t.Fatalf("restored cache was not used")
	}
	if err := s.ClearCache(ctx, roots); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Restore(ctx, roots); ok {
		t.Fatalf("cleared cache still restores")
	}
}

func newStore(t *testing.T) cache.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	return cache.NewDBStore(db)
}

func TestRestoredResultKeepsDiagnostics(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	msgs := i18n.New("en")
	roots := []dirtree.Ref{"missing", "b"}
	p := newProvider(merge(game("b/ProjectY"), fstest.MapFS{"b/GM.sf2": {}}))
	first, err := New(Options{Provider: p, Cache: store, Messages: msgs}).Scan(ctx, roots, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{msgs.Format(i18n.RootMissing, "missing")}
	if !reflect.DeepEqual(first.Errors, want) {
		t.Fatalf("scan errors = %v", first.Errors)
	}

	fresh := newProvider(fstest.MapFS{})
	s := New(Options{Provider: fresh, Cache: store, Messages: msgs})
	if _, ok, err := s.Restore(ctx, roots); err != nil || !ok {
		t.Fatalf("restore ok=%v err=%v", ok, err)
	}
	res, err := s.Scan(ctx, roots, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Fatalf("restored errors = %v, want %v", res.Errors, want)
	}
	if got := titles(res); len(got) != 1 || got[0] != "ProjectY" || res.SoundFont != first.SoundFont {
		t.Fatalf("restored games=%v soundfont=%q", got, res.SoundFont)
	}
	if fresh.calls.Load() != 0 {
		t.Fatalf("restored result walked the provider")
	}
}

func TestRestoredSoundFont(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	roots := []dirtree.Ref{"a"}
	p := newProvider(merge(game("a/Hero"), fstest.MapFS{"a/GM.sf2": {}}))
	if _, err := New(Options{Provider: p, Cache: store}).Scan(ctx, roots, false); err != nil {
		t.Fatal(err)
	}
	res, ok, err := New(Options{Provider: newProvider(fstest.MapFS{}), Cache: store}).Restore(ctx, roots)
	if err != nil || !ok || res.SoundFont != "a/GM.sf2" {
		t.Fatalf("soundfont=%q ok=%v err=%v", res.SoundFont, ok, err)
	}
}

// zipOf builds an in-memory zip holding files.
func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestZippedGame(t *testing.T) {
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	png, err := thumbnail.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	packed := zipOf(t, map[string][]byte{
		"Packed/RPG_RT.ldb":  nil,
		"Packed/RPG_RT.lmt":  nil,
		"Packed/Title/t.png": png,
	})
	junk := zipOf(t, map[string][]byte{"readme.txt": []byte("hi")})
	files := merge(game("root/Plain"), fstest.MapFS{
		"root/Packed.zip": {Data: packed},
		"root/junk.zip":   {Data: junk},
		"root/broken.zip": {Data: []byte("not a zip")},
	})
	saveDir := t.TempDir()
	store := newStore(t)
	roots := []dirtree.Ref{"root"}
	s := New(Options{Provider: newProvider(files), SaveDir: saveDir, Cache: store})
	defer s.Close()
	res, err := s.Scan(ctx, roots, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(res); !reflect.DeepEqual(got, []string{"Packed", "Plain"}) {
		t.Fatalf("games = %v", got)
	}
	g := res.Games[0]
	if !g.IsArchive() || g.Folder() != "Packed" || g.Archive() != "root/Packed.zip" || g.ProjectPath() != "root/Packed.zip" {
		t.Fatalf("archive=%q folder=%q project=%q", g.Archive(), g.Folder(), g.ProjectPath())
	}
	if g.SavePath() != filepath.Join(saveDir, "Packed") {
		t.Fatalf("save path = %q", g.SavePath())
	}
	if g.TitleImage() == nil {
		t.Fatalf("title image not read from the archive")
	}
	if res.Games[1].IsArchive() {
		t.Fatalf("plain folder reported as archive")
	}

	restored := New(Options{Provider: newProvider(files), SaveDir: saveDir, Cache: store})
	defer restored.Close()
	rres, ok, err := restored.Restore(ctx, roots)
	if err != nil || !ok {
		t.Fatalf("restore ok=%v err=%v", ok, err)
	}
	rg := rres.Games[0]
	if rg.Archive() != g.Archive() || rg.Folder() != g.Folder() || rg.SavePath() != g.SavePath() || rg.TitleImage() == nil {
		t.Fatalf("restored archive=%q folder=%q save=%q", rg.Archive(), rg.Folder(), rg.SavePath())
	}

	// the archive is gone, so the cache no longer describes the disk
	gone := New(Options{Provider: newProvider(game("root/Plain")), Cache: store})
	if _, ok, err := gone.Restore(ctx, roots); err != nil || ok {
		t.Fatalf("restore without the archive ok=%v err=%v", ok, err)
	}
}

func TestDeniedRootIsNotReadable(t *testing.T) {
	msgs := i18n.New("en")
	p := newProvider(merge(game("locked/A"), game("ok/Hero")))
	p.denied["locked"] = true
	res, err := New(Options{Provider: p, Messages: msgs}).Scan(context.Background(), []dirtree.Ref{"locked", "ok"}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{msgs.Format(i18n.RootNotReadable, "locked")}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Fatalf("errors = %v, want %v", res.Errors, want)
	}
}

func TestLocalRootBehindClosedFolder(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	parent := filepath.Join(t.TempDir(), "closed")
	root := filepath.Join(parent, "games")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(parent, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })
	msgs := i18n.New("en")
	res, _ := New(Options{Provider: dirtree.Local{}, Messages: msgs}).Scan(context.Background(), []dirtree.Ref{dirtree.Ref(root)}, false)
	if len(res.Errors) == 0 || res.Errors[0] != msgs.Format(i18n.RootNotReadable, root) {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestInvalidateDuringScanIsNotCached(t *testing.T) {
	p := newProvider(game("root/A"))
	p.block = make(chan struct{})
	s := New(Options{Provider: p})
	roots := []dirtree.Ref{"root"}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Scan(context.Background(), roots, false)
	}()
	for s.State() != Scanning {
		runtime.Gosched()
	}
	s.Invalidate()
	close(p.block)
	wg.Wait()
	if _, ok := s.Cached(); ok {
		t.Fatalf("scan overtaken by a change was cached")
	}
	before := p.calls.Load()
	res, err := s.Scan(context.Background(), roots, false)
	if err != nil || len(res.Games) != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if p.calls.Load() == before {
		t.Fatalf("next scan answered from a stale result")
	}
	if _, ok := s.Cached(); !ok {
		t.Fatalf("undisturbed scan must be cached")
	}
}
