// Package librarycmd holds the gamebrowser subcommands.
package librarycmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/app/browser"
	"github.com/cuihairu/gamebrowser/internal/cli/common"
	"github.com/cuihairu/gamebrowser/internal/games"
)

// AddGlobalFlags registers the flags every subcommand reads.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().StringSlice("include", nil, "additional config files merged in order")
	root.PersistentFlags().String("profile", "", "profile overlay from profiles.<name>")
}

// LoadConfig resolves the effective configuration for cmd.
func LoadConfig(cmd *cobra.Command) (*common.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	includes, _ := cmd.Flags().GetStringSlice("include")
	profile, _ := cmd.Flags().GetString("profile")
	v, err := common.Load(file, includes, profile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := common.ValidateLibraryConfig(v, false); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return common.Decode(v)
}

// openApp loads the config, sets up logging and builds the App.
func openApp(cmd *cobra.Command) (*browser.App, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	common.SetupLogger(cfg.Log)
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		slog.Debug("config loaded", "file", file)
	}
	return browser.New(cmd.Context(), cfg, slog.Default())
}

// withApp runs fn with an App that is closed afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *browser.App) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer func() {
		if err := a.Close(ctx); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}()
	return fn(ctx, a)
}

// findGame scans (from cache when possible) and looks title up.
func findGame(ctx context.Context, a *browser.App, title string) (*games.Entry, error) {
	res, err := a.Scan(ctx, false)
	if err != nil {
		return nil, err
	}
	return browser.FindGame(ctx, res.Games, title)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
