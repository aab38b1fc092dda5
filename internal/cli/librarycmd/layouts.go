package librarycmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/app/browser"
	"github.com/cuihairu/gamebrowser/internal/layout"
)

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid layout id %q", s)
	}
	return id, nil
}

func printLayout(w io.Writer, l layout.Layout, isDefault bool) {
	mark := " "
	if isDefault {
		mark = "*"
	}
	fmt.Fprintf(w, "%s %-10d %s (%d buttons)\n", mark, l.ID, l.Name, len(l.Buttons))
}

// NewLayouts returns the `layouts` command group.
func NewLayouts() *cobra.Command {
	cmd := &cobra.Command{Use: "layouts", Short: "Manage input layouts"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List layouts; the default is starred",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				def := a.Layouts.DefaultID()
				for _, l := range a.Layouts.Layouts() {
					printLayout(cmd.OutOrStdout(), l, l.ID == def)
				}
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show the buttons of a layout (unknown ids show the default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				l := a.Layouts.GetByID(id)
				out := cmd.OutOrStdout()
				printLayout(out, l, l.ID == a.Layouts.DefaultID())
				for _, b := range l.Buttons {
					fmt.Fprintf(out, "    %-20s x=%.2f y=%.2f size=%d%%\n", layout.KeyLabel(b.KeyCode), b.X, b.Y, b.Size)
				}
				fmt.Fprintf(out, "    compact: %s\n", layout.FormatCompact(l.Buttons))
				return nil
			})
		},
	}

	var preset, compact string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a layout from a preset or a compact button list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var buttons []layout.Button
			switch {
			case compact != "":
				var err error
				if buttons, err = layout.ParseCompact(compact); err != nil {
					return err
				}
			case preset == "vertical":
				buttons = layout.DefaultVertical()
			case preset == "horizontal":
				buttons = layout.DefaultHorizontal()
			default:
				return fmt.Errorf("unknown preset %q (horizontal|vertical)", preset)
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				l := a.Layouts.NewLayout(args[0], buttons)
				if err := a.Layouts.Add(l); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added layout %d\n", l.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&preset, "preset", "horizontal", "button preset: horizontal|vertical")
	add.Flags().StringVar(&compact, "buttons", "", `buttons as "keycode:size:x:y;..."`)

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				return a.Layouts.Delete(id)
			})
		},
	}

	setDefault := &cobra.Command{
		Use:   "set-default ID",
		Short: "Select the default layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				return a.Layouts.SetDefault(id)
			})
		},
	}

	export := &cobra.Command{
		Use:   "export ID",
		Short: "Print a layout as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				b, err := a.Layouts.Export(id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Add a layout exported by `layouts export` (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *browser.App) error {
				l, err := a.Layouts.Import(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported layout %d\n", l.ID)
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, add, del, setDefault, export, imp)
	return cmd
}
