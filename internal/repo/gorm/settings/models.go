package settings

import (
	"time"

	"gorm.io/datatypes"
)

// Favorite marks a game title as favorite. Titles are folder names, so two
// games with the same folder name share the flag.
type Favorite struct {
	Title     string `gorm:"primaryKey;size:255"`
	CreatedAt time.Time
}

func (Favorite) TableName() string { return "favorite_games" }

// Setting is one global preference stored as JSON.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:128"`
	Value     datatypes.JSON `gorm:"type:json"`
	UpdatedAt time.Time
}

func (Setting) TableName() string { return "settings" }

// Well-known setting keys.
const (
	KeyGamesFolders = "games_folders"
	KeySoundFont    = "soundfont"
	KeyAudioEnabled = "audio_enabled"
)
