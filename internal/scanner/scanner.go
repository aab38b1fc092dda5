// Package scanner walks the configured game roots, classifies folders and
// assembles the game library.
//
// A Scanner is long lived: it remembers the last successful result and
// answers repeated scans from memory until Invalidate is called or a scan
// is forced. At most one physical scan runs at a time.
//
// Zip archives are games too. Archives holding a game stay open until the
// next walk replaces the result or the Scanner is closed.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuihairu/gamebrowser/internal/cache"
	"github.com/cuihairu/gamebrowser/internal/classify"
	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/games"
	"github.com/cuihairu/gamebrowser/internal/i18n"
	"github.com/cuihairu/gamebrowser/internal/telemetry"
	"github.com/cuihairu/gamebrowser/internal/thumbnail"
)

// Depth budgets. The first root may hold games one level below a
// top-level folder; later roots only hold games directly.
const (
	FirstRootDepth = 2
	OtherRootDepth = 1
	// ArchiveDepth bounds the search for a game inside a zip archive.
	ArchiveDepth = 2

	soundFontExt = ".sf2"
)

// ErrScanInProgress is returned when Scan is called while another scan is
// running. Callers retry later.
var ErrScanInProgress = errors.New("scanner: scan already in progress")

// State is the scanner lifecycle.
type State int32

const (
	Idle State = iota
	Scanning
	Done
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Done:
		return "done"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// FavoriteSource lists favorite titles.
type FavoriteSource interface {
	Favorites(ctx context.Context) (map[string]bool, error)
}

// Options wires the scanner's collaborators. Only Provider is required.
type Options struct {
	Provider   dirtree.Provider
	Classify   classify.Func
	Thumbnails *thumbnail.Resolver
	// Favorites seeds each entry's favorite flag at scan time.
	Favorites FavoriteSource
	// FavoriteStore receives favorite toggles made on entries.
	FavoriteStore games.FavoriteStore
	SaveDir       string
	PrefsName     string
	Messages      *i18n.Catalog
	Metrics       *telemetry.ScanMetrics
	// Cache persists results between runs. Nil disables persistence.
	Cache  cache.Store
	Logger *slog.Logger
}

// Result is one scan outcome. Games keep discovery order. Errors holds
// localized diagnostics; both may be non-empty at the same time.
type Result struct {
	Games     []*games.Entry
	Errors    []string
	SoundFont dirtree.Ref
}

func (r Result) clone() Result {
	return Result{
		Games:     append([]*games.Entry(nil), r.Games...),
		Errors:    append([]string(nil), r.Errors...),
		SoundFont: r.SoundFont,
	}
}

// Scanner discovers games under a list of roots.
type Scanner struct {
	opts    Options
	logger  *slog.Logger
	state   atomic.Int32
	running atomic.Bool

	mu       sync.Mutex
	valid    bool
	gen      uint64 // bumped by Invalidate
	cacheKey string
	last     Result
	archives []*dirtree.Archive
}

// walkState collects one walk.
type walkState struct {
	res       Result
	favorites map[string]bool
	archives  []*dirtree.Archive
}

// New returns a Scanner. Missing collaborators get defaults: the full
// classifier, the built-in thumbnail resolver and English messages.
func New(opts Options) *Scanner {
	if opts.Classify == nil {
		opts.Classify = classify.Classify
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Thumbnails == nil {
		opts.Thumbnails = thumbnail.NewResolver(opts.Provider, opts.Logger)
	}
	if opts.Messages == nil {
		opts.Messages = i18n.New(i18n.DefaultLocale)
	}
	return &Scanner{opts: opts, logger: opts.Logger}
}

// State reports the lifecycle state of the most recent scan.
func (s *Scanner) State() State { return State(s.state.Load()) }

// Invalidate drops the remembered result so the next Scan walks the roots.
// A scan already running when Invalidate is called does not become the
// remembered result.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.gen++
	s.mu.Unlock()
}

// Close releases the archives backing the current result.
func (s *Scanner) Close() error {
	s.mu.Lock()
	old := s.archives
	s.archives, s.valid = nil, false
	s.mu.Unlock()
	return closeArchives(old)
}

// swapArchives installs the archives of a new result and closes the
// previous ones.
func (s *Scanner) swapArchives(archives []*dirtree.Archive) {
	s.mu.Lock()
	old := s.archives
	s.archives = archives
	s.mu.Unlock()
	if err := closeArchives(old); err != nil {
		s.logger.Debug("archive close failed", "error", err)
	}
}

func closeArchives(list []*dirtree.Archive) error {
	var errs []error
	for _, a := range list {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cached returns the remembered result, if valid.
func (s *Scanner) Cached() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return Result{}, false
	}
	return s.last.clone(), true
}

// Scan returns the games under roots. Without force a valid remembered
// result for the same roots is returned without touching the provider.
// The scan runs on the caller's goroutine and is not cancelled by ctx;
// ctx is only forwarded to provider calls.
func (s *Scanner) Scan(ctx context.Context, roots []dirtree.Ref, force bool) (Result, error) {
	ctx, span := s.opts.Metrics.StartScan(ctx, len(roots), force)
	if !s.running.CompareAndSwap(false, true) {
		s.opts.Metrics.EndScan(ctx, span, 0, 0, 0, false, "busy")
		return Result{}, ErrScanInProgress
	}
	defer s.running.Store(false)

	key := rootsKey(roots)
	s.mu.Lock()
	if force {
		s.valid = false
	}
	if s.valid && s.cacheKey == key {
		res := s.last.clone()
		s.mu.Unlock()
		s.opts.Metrics.EndScan(ctx, span, 0, len(res.Games), len(res.Errors), true, "done")
		return res, nil
	}
	gen := s.gen
	s.mu.Unlock()

	s.state.Store(int32(Scanning))
	start := time.Now()
	res, usable, archives := s.walk(ctx, roots)
	elapsed := time.Since(start)
	s.swapArchives(archives)

	outcome := Done
	if usable == 0 {
		outcome = Errored
	}
	s.state.Store(int32(outcome))
	s.logger.Info("library scan finished",
		"roots", len(roots), "games", len(res.Games), "errors", len(res.Errors),
		"state", outcome.String(), "elapsed", elapsed)
	s.opts.Metrics.EndScan(ctx, span, elapsed, len(res.Games), len(res.Errors), false, outcome.String())

	if outcome != Done {
		return res, nil
	}
	s.mu.Lock()
	stale := s.gen != gen
	if !stale {
		s.last, s.cacheKey, s.valid = res.clone(), key, true
	}
	s.mu.Unlock()
	if stale {
		s.logger.Info("library changed during scan, result not cached")
		return res, nil
	}
	s.persist(ctx, roots, res)
	return res, nil
}

// walk visits every root in order and returns the result, the number of
// roots that passed validation and the archives the result reads from.
func (s *Scanner) walk(ctx context.Context, roots []dirtree.Ref) (Result, int, []*dirtree.Archive) {
	w := &walkState{favorites: s.loadFavorites(ctx)}
	usable := 0
	for i, root := range roots {
		depth := OtherRootDepth
		if i == 0 {
			depth = FirstRootDepth
		}
		if !s.checkRoot(ctx, root, &w.res) {
			continue
		}
		usable++
		rctx, span := s.opts.Metrics.StartRoot(ctx, string(root), depth)
		entries, err := s.opts.Provider.List(rctx, root)
		if err != nil {
			s.rootError(rctx, &w.res, i18n.RootListFailed, "list_failed", root, err)
			span.End()
			continue
		}
		if i == 0 {
			w.res.SoundFont = s.findSoundFont(root, entries)
		}
		s.visitListed(rctx, w, root, entries, depth)
		span.End()
	}
	if len(w.res.Games) == 0 {
		w.res.Errors = append(w.res.Errors, s.opts.Messages.Format(i18n.NoGamesFound, ""))
	}
	return w.res, usable, w.archives
}

func (s *Scanner) checkRoot(ctx context.Context, root dirtree.Ref, res *Result) bool {
	acc, err := s.opts.Provider.Stat(ctx, root)
	switch {
	case err != nil:
		s.rootError(ctx, res, i18n.RootNotReadable, "not_readable", root, err)
	case !acc.Exists:
		s.rootError(ctx, res, i18n.RootMissing, "missing", root, nil)
	case !acc.IsDir:
		s.rootError(ctx, res, i18n.RootNotDir, "not_dir", root, nil)
	case !acc.Readable:
		s.rootError(ctx, res, i18n.RootNotReadable, "not_readable", root, nil)
	case !acc.Writable:
		s.rootError(ctx, res, i18n.RootNotWritable, "not_writable", root, nil)
	default:
		return true
	}
	return false
}

func (s *Scanner) rootError(ctx context.Context, res *Result, key, reason string, root dirtree.Ref, err error) {
	msg := s.opts.Messages.Format(key, string(root))
	res.Errors = append(res.Errors, msg)
	s.opts.Metrics.RecordRootError(ctx, reason)
	if err != nil {
		s.logger.Warn("scan root skipped", "root", string(root), "reason", reason, "error", err)
	} else {
		s.logger.Warn("scan root skipped", "root", string(root), "reason", reason)
	}
}

// visit lists folder once and continues with visitListed.
func (s *Scanner) visit(ctx context.Context, w *walkState, folder dirtree.Ref, depth int) {
	entries, err := s.opts.Provider.List(ctx, folder)
	if err != nil {
		s.logger.Debug("folder skipped", "folder", string(folder), "error", err)
		return
	}
	s.visitListed(ctx, w, folder, entries, depth)
}

// visitListed classifies an already listed folder. A recognized folder
// becomes an entry and is not descended into. Subfolders and zip archives
// are visited in listing order while depth remains.
func (s *Scanner) visitListed(ctx context.Context, w *walkState, folder dirtree.Ref, entries []dirtree.Entry, depth int) {
	s.opts.Metrics.RecordFolder(ctx)
	if r := s.opts.Classify(entries); r.Recognized {
		w.res.Games = append(w.res.Games, s.materialize(ctx, s.opts.Provider, folder, r, w.favorites, nil))
		return
	}
	if depth <= 0 {
		return
	}
	for _, e := range entries {
		if dirtree.IsHidden(e.Name) {
			continue
		}
		child := s.opts.Provider.Child(folder, e.Name)
		switch {
		case e.IsDir:
			s.visit(ctx, w, child, depth-1)
		case dirtree.IsArchive(e.Name):
			s.visitArchive(ctx, w, child)
		}
	}
}

// visitArchive opens a zip and adds the first game found inside it.
// Unreadable archives and archives without a game are skipped silently.
func (s *Scanner) visitArchive(ctx context.Context, w *walkState, ref dirtree.Ref) {
	arch, err := dirtree.OpenArchive(ctx, s.opts.Provider, ref)
	if err != nil {
		s.logger.Debug("archive skipped", "archive", string(ref), "error", err)
		return
	}
	folder, r, ok := s.findInArchive(ctx, arch, ".", ArchiveDepth)
	if !ok {
		_ = arch.Close()
		return
	}
	w.archives = append(w.archives, arch)
	w.res.Games = append(w.res.Games, s.materialize(ctx, arch, folder, r, w.favorites, arch))
}

func (s *Scanner) findInArchive(ctx context.Context, arch *dirtree.Archive, folder dirtree.Ref, depth int) (dirtree.Ref, classify.Result, bool) {
	entries, err := arch.List(ctx, folder)
	if err != nil {
		return "", classify.Result{}, false
	}
	if r := s.opts.Classify(entries); r.Recognized {
		return folder, r, true
	}
	if depth <= 0 {
		return "", classify.Result{}, false
	}
	for _, e := range entries {
		if !e.IsDir || dirtree.IsHidden(e.Name) {
			continue
		}
		if found, r, ok := s.findInArchive(ctx, arch, arch.Child(folder, e.Name), depth-1); ok {
			return found, r, true
		}
	}
	return "", classify.Result{}, false
}

// materialize builds the entry for a recognized folder read through p.
// arch is set when p is an archive.
func (s *Scanner) materialize(ctx context.Context, p dirtree.Provider, folder dirtree.Ref, r classify.Result, favorites map[string]bool, arch *dirtree.Archive) *games.Entry {
	var titleRef *dirtree.Ref
	if r.HasTitle {
		ref := p.Child(folder, classify.TitleFolder)
		titleRef = &ref
	}
	thumbs := s.opts.Thumbnails
	var (
		title    string
		archive  dirtree.Ref
		writable bool
	)
	if arch != nil {
		thumbs = thumbs.WithProvider(arch)
		archive = arch.Ref
		title = dirtree.ArchiveStem(s.opts.Provider.Name(arch.Ref))
	} else {
		title = p.Name(folder)
		if acc, err := p.Stat(ctx, folder); err == nil {
			writable = acc.Writable
		}
	}
	s.opts.Metrics.RecordGame(ctx, r.Type.String())
	s.logger.Debug("game found", "folder", string(folder), "archive", string(archive), "type", r.Type.String())
	return games.New(games.Options{
		Provider:   p,
		Folder:     folder,
		Archive:    archive,
		Title:      title,
		Type:       r.Type,
		Writable:   writable,
		SaveDir:    s.opts.SaveDir,
		IniName:    r.Ini,
		PrefsName:  s.opts.PrefsName,
		Favorite:   favorites[title],
		Favorites:  s.opts.FavoriteStore,
		TitleImage: thumbs.Resolve(ctx, titleRef),
		Logger:     s.logger,
	})
}

func (s *Scanner) findSoundFont(root dirtree.Ref, entries []dirtree.Entry) dirtree.Ref {
	for _, e := range entries {
		if e.IsDir || dirtree.IsHidden(e.Name) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name), soundFontExt) {
			s.logger.Info("soundfont found", "name", e.Name)
			return s.opts.Provider.Child(root, e.Name)
		}
	}
	return ""
}

func (s *Scanner) loadFavorites(ctx context.Context) map[string]bool {
	if s.opts.Favorites == nil {
		return nil
	}
	favs, err := s.opts.Favorites.Favorites(ctx)
	if err != nil {
		s.logger.Warn("favorites unavailable", "error", err)
		return nil
	}
	return favs
}

func rootsKey(roots []dirtree.Ref) string {
	return cache.Key(refStrings(roots))
}

func refStrings(roots []dirtree.Ref) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = string(r)
	}
	return out
}
