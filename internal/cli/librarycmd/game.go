package librarycmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/app/browser"
	"github.com/cuihairu/gamebrowser/internal/games"
	"github.com/cuihairu/gamebrowser/internal/i18n"
)

// gameCommand builds a subcommand whose first argument is a game title.
func gameCommand(use, short string, nargs int, run func(ctx context.Context, cmd *cobra.Command, a *browser.App, e *games.Entry, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *browser.App) error {
				e, err := findGame(ctx, a, args[0])
				if err != nil {
					return err
				}
				return run(ctx, cmd, a, e, args[1:])
			})
		},
	}
}

// NewGame returns the `game` command group.
func NewGame() *cobra.Command {
	cmd := &cobra.Command{Use: "game", Short: "Inspect and configure one game"}

	show := gameCommand("show TITLE", "Show a game's details", 1,
		func(ctx context.Context, cmd *cobra.Command, a *browser.App, e *games.Entry, _ []string) error {
			v := viewOf(ctx, e)
			return writeJSON(cmd.OutOrStdout(), struct {
				gameView
				IniTitle string `json:"ini_title,omitempty"`
				Layout   string `json:"layout_name"`
			}{v, e.IniTitle(ctx), a.Layouts.GetByID(v.LayoutID).Name})
		})

	var off bool
	favorite := gameCommand("favorite TITLE", "Mark a game as favorite", 1,
		func(ctx context.Context, _ *cobra.Command, _ *browser.App, e *games.Entry, _ []string) error {
			return e.SetFavorite(ctx, !off)
		})
	favorite.Flags().BoolVar(&off, "off", false, "remove the favorite mark")

	var writeIni bool
	encoding := gameCommand("encoding TITLE CODE", "Set the text encoding (auto, 932, 1252, ...)", 2,
		func(ctx context.Context, _ *cobra.Command, _ *browser.App, e *games.Entry, args []string) error {
			enc := games.ParseEncoding(args[0])
			if enc == games.EncodingAuto && !strings.EqualFold(args[0], "auto") {
				return fmt.Errorf("unknown encoding %q", args[0])
			}
			if writeIni {
				return e.WriteIniEncoding(ctx, enc)
			}
			return e.SetEncoding(ctx, enc)
		})
	encoding.Flags().BoolVar(&writeIni, "ini", false, "write the encoding into RPG_RT.ini instead of the game preferences")

	setLayout := gameCommand("layout TITLE ID", "Select the input layout for a game (-1 clears)", 2,
		func(ctx context.Context, _ *cobra.Command, a *browser.App, e *games.Entry, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid layout id %q", args[0])
			}
			if id != games.NoLayout && a.Layouts.ResolveID(id) != id {
				return fmt.Errorf("layout %d does not exist", id)
			}
			return e.SetInputLayoutID(ctx, id)
		})

	title := gameCommand("title TITLE NEW", "Set a custom display title (empty clears)", 2,
		func(ctx context.Context, _ *cobra.Command, _ *browser.App, e *games.Entry, args []string) error {
			return e.SetCustomTitle(ctx, args[0])
		})

	launch := gameCommand("launch-args TITLE", "Print the engine command line", 1,
		func(ctx context.Context, cmd *cobra.Command, a *browser.App, e *games.Entry, _ []string) error {
			if !e.Launchable() {
				return fmt.Errorf("%s", a.Messages.Format(i18n.UnsupportedGame, e.Title()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(a.LaunchArgs(ctx, e), " "))
			return nil
		})

	cmd.AddCommand(show, favorite, encoding, setLayout, title, launch)
	return cmd
}

// NewFolders returns the `folders` command group editing the stored roots.
func NewFolders() *cobra.Command {
	cmd := &cobra.Command{Use: "folders", Short: "Manage the game roots stored in the settings"}
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the stored roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *browser.App) error {
				roots, err := a.Settings.GamesFolders(ctx)
				if err != nil {
					return err
				}
				for _, r := range roots {
					fmt.Fprintln(cmd.OutOrStdout(), r)
				}
				return nil
			})
		},
	}
	set := &cobra.Command{
		Use:   "set ROOT...",
		Short: "Replace the stored roots; the first one is walked deepest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *browser.App) error {
				return a.Settings.SetGamesFolders(ctx, args)
			})
		},
	}
	cmd.AddCommand(list, set)
	return cmd
}
