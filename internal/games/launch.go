package games

import (
	"context"
	"sort"
	"strconv"
)

// LayoutResolver maps a per-game layout id (or NoLayout) to the id of a
// layout that exists.
type LayoutResolver interface {
	ResolveID(id int) int
}

// LaunchOptions carry global settings that end up on the command line.
type LaunchOptions struct {
	SoundFont    string
	DisableAudio bool
}

// LaunchArgs builds the engine command line for e.
func LaunchArgs(ctx context.Context, e *Entry, layouts LayoutResolver, opts LaunchOptions) []string {
	args := []string{
		"--project-path", e.ProjectPath(),
		"--save-path", e.SavePath(),
		"--encoding", e.Encoding(ctx).RegionCode(),
	}
	if layouts != nil {
		args = append(args, "--input-layout", strconv.Itoa(layouts.ResolveID(e.InputLayoutID(ctx))))
	}
	if opts.SoundFont != "" {
		args = append(args, "--soundfont", opts.SoundFont)
	}
	if opts.DisableAudio {
		args = append(args, "--disable-audio")
	}
	return args
}

// SortForDisplay orders favorites first, then by title. The scanner never
// sorts; this is for presentation.
func SortForDisplay(list []*Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		fi, fj := list[i].IsFavorite(), list[j].IsFavorite()
		if fi != fj {
			return fi
		}
		return list[i].Title() < list[j].Title()
	})
}
