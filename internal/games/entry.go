// Package games holds the discovered game entity and its per-game
// preferences.
package games

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cuihairu/gamebrowser/internal/classify"
	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// FavoriteStore mirrors favorite flags into the global settings.
type FavoriteStore interface {
	AddFavorite(ctx context.Context, title string) error
	RemoveFavorite(ctx context.Context, title string) error
}

// Options describe a game at construction time.
type Options struct {
	Provider dirtree.Provider
	Folder   dirtree.Ref
	Type     classify.ProjectType
	// Writable reports whether saves may go into Folder.
	Writable bool
	// SaveDir is the app-private area used when Folder is not writable.
	SaveDir string
	// SavePath overrides the computed save location (cache restore).
	SavePath string
	// Archive is set for games inside a zip: Provider then serves the
	// archive contents and Folder is the game's path inside it.
	Archive dirtree.Ref
	// Title overrides the folder-derived title.
	Title string
	// IniName is the actual name of the ini child, empty when absent.
	IniName    string
	PrefsName  string
	Favorite   bool
	Favorites  FavoriteStore
	TitleImage image.Image
	Logger     *slog.Logger
}

// Entry is one discovered game. Folder and save path never change after
// construction; preferences are read on first use and written on change.
type Entry struct {
	provider dirtree.Provider
	folder   dirtree.Ref
	archive  dirtree.Ref
	title    string
	typ      classify.ProjectType
	iniName  string

	savePath     string
	saveProvider dirtree.Provider
	prefsRef     dirtree.Ref

	favorites  FavoriteStore
	titleImage image.Image
	logger     *slog.Logger

	mu          sync.Mutex
	favorite    bool
	prefs       Prefs
	prefsLoaded bool
	ini         *IniInfo
}

// New builds an Entry and resolves its save path.
func New(opts Options) *Entry {
	e := &Entry{
		provider:   opts.Provider,
		folder:     opts.Folder,
		archive:    opts.Archive,
		title:      opts.Title,
		typ:        opts.Type,
		iniName:    opts.IniName,
		favorite:   opts.Favorite,
		favorites:  opts.Favorites,
		titleImage: opts.TitleImage,
		logger:     opts.Logger,
	}
	if e.title == "" {
		e.title = opts.Provider.Name(opts.Folder)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	name := opts.PrefsName
	if name == "" {
		name = DefaultPrefsName
	}
	switch {
	case opts.SavePath != "" && opts.Archive == "" && opts.SavePath == string(opts.Folder):
		e.savePath, e.saveProvider = opts.SavePath, opts.Provider
	case opts.SavePath != "":
		e.savePath, e.saveProvider = opts.SavePath, dirtree.Local{}
	case opts.Archive != "":
		// archives are never written to
		dir := opts.SaveDir
		if dir == "" {
			dir = filepath.Dir(string(opts.Archive))
		}
		e.savePath = filepath.Join(dir, archiveSaveName(string(opts.Archive)))
		e.saveProvider = dirtree.Local{}
	case opts.Writable || opts.SaveDir == "":
		e.savePath, e.saveProvider = string(opts.Folder), opts.Provider
	default:
		parent := opts.Provider.Name(opts.Provider.Parent(opts.Folder))
		e.savePath = filepath.Join(opts.SaveDir, parent, e.title)
		e.saveProvider = dirtree.Local{}
	}
	e.prefsRef = e.saveProvider.Child(dirtree.Ref(e.savePath), name)
	return e
}

// archiveSaveName is the archive name up to its first dot, the folder name
// the engine itself uses for archive saves.
func archiveSaveName(archive string) string {
	name, _, _ := strings.Cut(filepath.Base(archive), ".")
	return name
}

// Title is the folder-derived title.
func (e *Entry) Title() string { return e.title }

// Folder is the game's root folder reference. For archived games it is
// the path inside the archive.
func (e *Entry) Folder() dirtree.Ref { return e.folder }

// Archive is the zip holding the game, empty for plain folders.
func (e *Entry) Archive() dirtree.Ref { return e.archive }

func (e *Entry) IsArchive() bool { return e.archive != "" }

// ProjectPath is what the engine opens: the archive or the folder.
func (e *Entry) ProjectPath() string {
	if e.archive != "" {
		return string(e.archive)
	}
	return string(e.folder)
}

func (e *Entry) Provider() dirtree.Provider { return e.provider }

func (e *Entry) SavePath() string { return e.savePath }

func (e *Entry) ProjectType() classify.ProjectType { return e.typ }

// Launchable reports whether the engine can run this game.
func (e *Entry) Launchable() bool { return e.typ.Supported() }

func (e *Entry) TitleImage() image.Image { return e.titleImage }

// IniName is the actual name of the game's ini file, empty when absent.
func (e *Entry) IniName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iniName
}

func (e *Entry) IsFavorite() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.favorite
}

// SetFavorite updates the flag and mirrors it into the favorites store.
func (e *Entry) SetFavorite(ctx context.Context, fav bool) error {
	e.mu.Lock()
	e.favorite = fav
	e.mu.Unlock()
	if e.favorites == nil {
		return nil
	}
	if fav {
		return e.favorites.AddFavorite(ctx, e.title)
	}
	return e.favorites.RemoveFavorite(ctx, e.title)
}

// CustomTitle returns the user override, empty when unset.
func (e *Entry) CustomTitle(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	return e.prefs.CustomTitle
}

// DisplayTitle returns the custom title when set, else the folder title.
func (e *Entry) DisplayTitle(ctx context.Context) string {
	if t := e.CustomTitle(ctx); t != "" {
		return t
	}
	return e.title
}

func (e *Entry) SetCustomTitle(ctx context.Context, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	e.prefs.CustomTitle = title
	return e.savePrefsLocked(ctx)
}

// Encoding returns the preference, falling back to the ini setting and
// then to Auto.
func (e *Entry) Encoding(ctx context.Context) Encoding {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	if e.prefs.Encoding != "" {
		return ParseEncoding(e.prefs.Encoding)
	}
	return e.iniLocked(ctx).Encoding
}

func (e *Entry) SetEncoding(ctx context.Context, enc Encoding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	if enc == EncodingAuto {
		e.prefs.Encoding = ""
	} else {
		e.prefs.Encoding = enc.RegionCode()
	}
	return e.savePrefsLocked(ctx)
}

// InputLayoutID returns the chosen layout id or NoLayout.
func (e *Entry) InputLayoutID(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	if e.prefs.LayoutID == nil {
		return NoLayout
	}
	return *e.prefs.LayoutID
}

// SetInputLayoutID stores id; NoLayout clears the preference.
func (e *Entry) SetInputLayoutID(ctx context.Context, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadPrefsLocked(ctx)
	if id == NoLayout {
		e.prefs.LayoutID = nil
	} else {
		e.prefs.LayoutID = &id
	}
	return e.savePrefsLocked(ctx)
}

// IniTitle is the GameTitle from RPG_RT.ini, empty when absent.
func (e *Entry) IniTitle(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iniLocked(ctx).GameTitle
}

// WriteIniEncoding stores enc in the game's RPG_RT.ini so other players
// pick it up too.
func (e *Entry) WriteIniEncoding(ctx context.Context, enc Encoding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := e.iniName
	if name == "" {
		name = classify.IniName
	}
	if err := WriteIniEncoding(ctx, e.provider, e.provider.Child(e.folder, name), enc); err != nil {
		return err
	}
	e.iniName = name
	e.ini = nil
	return nil
}

func (e *Entry) loadPrefsLocked(ctx context.Context) {
	if e.prefsLoaded {
		return
	}
	e.prefsLoaded = true
	prefs, err := LoadPrefs(ctx, e.saveProvider, e.prefsRef)
	if err != nil {
		e.logger.Warn("game preferences unreadable, using defaults", "game", e.title, "error", err)
		return
	}
	e.prefs = prefs
}

func (e *Entry) savePrefsLocked(ctx context.Context) error {
	return SavePrefs(ctx, e.saveProvider, e.prefsRef, e.prefs)
}

func (e *Entry) iniLocked(ctx context.Context) IniInfo {
	if e.ini != nil {
		return *e.ini
	}
	var info IniInfo
	if e.iniName != "" {
		var err error
		info, err = ReadIni(ctx, e.provider, e.provider.Child(e.folder, e.iniName))
		if err != nil {
			e.logger.Debug("ini unreadable", "game", e.title, "error", err)
		}
	}
	e.ini = &info
	return info
}
