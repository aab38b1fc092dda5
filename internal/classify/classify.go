// Package classify decides from a folder listing whether the folder holds a
// game project and which engine family it belongs to.
package classify

import (
	"strings"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// File names shared with the engine's on-disk format.
const (
	DatabaseName = "RPG_RT.ldb"
	TreemapName  = "RPG_RT.lmt"
	IniName      = "RPG_RT.ini"
	ExeName      = "RPG_RT.exe"
	TitleFolder  = "Title"

	rpgRtPrefix = "rpg_rt."
)

// Result is the outcome of classifying one folder. The zero value means
// "not a game".
type Result struct {
	Type       ProjectType
	Recognized bool
	// HasTitle is set when a directory named exactly TitleFolder was seen.
	HasTitle bool
	// Ini holds the actual child name of the ini file, if any.
	Ini string
}

// NotAGame is the zero Result.
var NotAGame = Result{}

// Func is the classifier signature the scanner depends on.
type Func func(entries []dirtree.Entry) Result

// Classify runs the 2000/2003 signature check and, when it fails, the
// engine family refinement.
func Classify(entries []dirtree.Entry) Result {
	r := Signature(entries)
	if r.Recognized {
		return r
	}
	if t := Refine(entries); t != Unknown {
		r.Type = t
		r.Recognized = true
	}
	return r
}

// Signature checks for the database and treemap files (any case) or for
// two files carrying the engine prefix with non-standard extensions. Once a
// folder qualifies it stays qualified; scanning stops as soon as both the
// database and the treemap are found.
func Signature(entries []dirtree.Entry) Result {
	var (
		res           Result
		databaseFound bool
		treemapFound  bool
		rpgRtCount    int
	)
	for _, e := range entries {
		if e.IsDir {
			if e.Name == TitleFolder {
				res.HasTitle = true
			}
			continue
		}
		name := e.Name
		if !databaseFound && strings.EqualFold(name, DatabaseName) {
			databaseFound = true
		} else if !treemapFound && strings.EqualFold(name, TreemapName) {
			treemapFound = true
		}
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, rpgRtPrefix) {
			switch {
			case strings.EqualFold(name, IniName):
				res.Ini = name
			case strings.EqualFold(name, ExeName):
			default:
				rpgRtCount++
			}
		}
		if (databaseFound && treemapFound) || rpgRtCount == 2 {
			res.Recognized = true
			res.Type = Supported
		}
		if databaseFound && treemapFound {
			break
		}
	}
	if res.Recognized && (!res.HasTitle || res.Ini == "") {
		// the short-circuit may have skipped these
		if !res.HasTitle {
			_, res.HasTitle = dirtree.Find(entries, TitleFolder, true)
		}
		if res.Ini == "" {
			if e, ok := dirtree.FindFold(entries, IniName); ok {
				res.Ini = e.Name
			}
		}
	}
	return res
}
