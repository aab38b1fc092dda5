package librarycmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/app/browser"
	"github.com/cuihairu/gamebrowser/internal/cli/common"
	"github.com/cuihairu/gamebrowser/internal/games"
	"github.com/cuihairu/gamebrowser/internal/scanner"
)

type gameView struct {
	Title      string `json:"title"`
	Display    string `json:"display_title"`
	Type       string `json:"project_type"`
	Launchable bool   `json:"launchable"`
	Favorite   bool   `json:"favorite"`
	Folder     string `json:"folder"`
	Archive    string `json:"archive,omitempty"`
	SavePath   string `json:"save_path"`
	Encoding   string `json:"encoding"`
	LayoutID   int    `json:"layout_id"`
	HasThumb   bool   `json:"has_thumbnail"`
}

type scanView struct {
	Games     []gameView `json:"games"`
	Errors    []string   `json:"errors"`
	SoundFont string     `json:"soundfont,omitempty"`
}

func viewOf(ctx context.Context, e *games.Entry) gameView {
	return gameView{
		Title:      e.Title(),
		Display:    e.DisplayTitle(ctx),
		Type:       e.ProjectType().String(),
		Launchable: e.Launchable(),
		Favorite:   e.IsFavorite(),
		Folder:     string(e.Folder()),
		Archive:    string(e.Archive()),
		SavePath:   e.SavePath(),
		Encoding:   e.Encoding(ctx).RegionCode(),
		LayoutID:   e.InputLayoutID(ctx),
		HasThumb:   e.TitleImage() != nil,
	}
}

func printResult(ctx context.Context, w io.Writer, res scanner.Result, asJSON bool) error {
	list := append([]*games.Entry(nil), res.Games...)
	games.SortForDisplay(list)
	view := scanView{Games: []gameView{}, Errors: res.Errors, SoundFont: string(res.SoundFont)}
	for _, e := range list {
		view.Games = append(view.Games, viewOf(ctx, e))
	}
	if asJSON {
		return writeJSON(w, view)
	}
	for _, g := range view.Games {
		star := " "
		if g.Favorite {
			star = "*"
		}
		note := ""
		if !g.Launchable {
			note = " (not supported)"
		}
		fmt.Fprintf(w, "%s %-32s %-22s %s%s\n", star, g.Display, g.Type, g.Folder, note)
	}
	for _, e := range view.Errors {
		fmt.Fprintf(w, "! %s\n", e)
	}
	return nil
}

// NewScan returns the `scan` command.
func NewScan() *cobra.Command {
	var force, asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the game roots and list the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *browser.App) error {
				res, err := a.Scan(ctx, force)
				if err != nil {
					return err
				}
				if err := printResult(ctx, cmd.OutOrStdout(), res, asJSON); err != nil {
					return err
				}
				if c := common.GetLogCounters(); c["error"] > 0 && !asJSON {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d error(s) logged\n", c["error"])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore cached results and walk the roots again")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// NewWatch returns the `watch` command.
func NewWatch() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan, then rescan whenever a game root changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *browser.App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
				defer stop()
				res, err := a.Scan(ctx, true)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := printResult(ctx, out, res, asJSON); err != nil {
					return err
				}
				w, err := a.Watch(ctx, nil, func(res scanner.Result) {
					fmt.Fprintln(out, "-- library changed --")
					_ = printResult(ctx, out, res, asJSON)
				})
				if err != nil {
					return err
				}
				defer w.Stop()
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
