package classify

import (
	"fmt"
	"strings"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// ProjectType identifies the engine family of a recognized folder.
type ProjectType int

const (
	Unknown ProjectType = iota
	Supported
	RpgMakerXP
	RpgMakerVX
	RpgMakerVXAce
	RpgMakerMvMz
	WolfRpg
	Encrypted2k3Maniacs
	RpgMaker95
	SimRpgMaker95
)

var projectTypeLabels = map[ProjectType]string{
	Unknown:             "Unknown",
	Supported:           "Supported",
	RpgMakerXP:          "RPG Maker XP",
	RpgMakerVX:          "RPG Maker VX",
	RpgMakerVXAce:       "RPG Maker VX Ace",
	RpgMakerMvMz:        "RPG Maker MV/MZ",
	WolfRpg:             "Wolf RPG Editor",
	Encrypted2k3Maniacs: "Encrypted 2003 (Maniacs Patch)",
	RpgMaker95:          "RPG Maker 95",
	SimRpgMaker95:       "Simulation RPG Maker 95",
}

func (t ProjectType) String() string {
	if s, ok := projectTypeLabels[t]; ok {
		return s
	}
	return fmt.Sprintf("ProjectType(%d)", int(t))
}

// Supported reports whether the engine can run this project.
func (t ProjectType) Supported() bool { return t == Supported }

// ParseProjectType maps a String label back to its type; unknown labels
// yield Unknown.
func ParseProjectType(s string) ProjectType {
	for t, label := range projectTypeLabels {
		if strings.EqualFold(label, s) {
			return t
		}
	}
	return Unknown
}

// Refine detects engine families the player cannot run so they can be
// listed with an explanation. It is best effort and only looks at names.
func Refine(entries []dirtree.Entry) ProjectType {
	var exe, maniacsDll, hasWww, hasPackageJSON bool
	for _, e := range entries {
		lower := strings.ToLower(e.Name)
		if e.IsDir {
			if lower == "www" {
				hasWww = true
			}
			continue
		}
		switch {
		case strings.HasSuffix(lower, ".rxproj"), strings.HasSuffix(lower, ".rgssad"):
			return RpgMakerXP
		case strings.HasSuffix(lower, ".rvproj"), strings.HasSuffix(lower, ".rgss2a"):
			return RpgMakerVX
		case strings.HasSuffix(lower, ".rvproj2"), strings.HasSuffix(lower, ".rgss3a"):
			return RpgMakerVXAce
		case strings.HasSuffix(lower, ".rpgproject"), strings.HasSuffix(lower, ".rmmzproject"):
			return RpgMakerMvMz
		case lower == "data.wolf", strings.HasSuffix(lower, ".wolf"):
			return WolfRpg
		case lower == "rpgmv95.dat":
			return RpgMaker95
		case lower == "srpgmv95.dat":
			return SimRpgMaker95
		case lower == strings.ToLower(ExeName):
			exe = true
		case lower == "ultimate_rt_eb.dll":
			maniacsDll = true
		case lower == "package.json":
			hasPackageJSON = true
		}
	}
	switch {
	case exe && maniacsDll:
		return Encrypted2k3Maniacs
	case hasWww && hasPackageJSON:
		return RpgMakerMvMz
	}
	return Unknown
}
