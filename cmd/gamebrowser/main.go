package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/cli/librarycmd"
)

func main() {
	root := &cobra.Command{Use: "gamebrowser", Short: "Game library browser for the EasyRPG player", SilenceUsage: true}
	librarycmd.AddGlobalFlags(root)

	root.AddCommand(librarycmd.NewScan())
	root.AddCommand(librarycmd.NewWatch())
	root.AddCommand(librarycmd.NewLayouts())
	root.AddCommand(librarycmd.NewGame())
	root.AddCommand(librarycmd.NewFolders())
	root.AddCommand(librarycmd.NewConfig())

	// completion
	comp := &cobra.Command{Use: "completion [bash|zsh|fish|powershell]", Short: "Generate shell completion"}
	comp.Run = func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			log.Fatalf("specify a shell: bash|zsh|fish|powershell")
		}
		switch sh := args[0]; sh {
		case "bash":
			root.GenBashCompletion(os.Stdout)
		case "zsh":
			root.GenZshCompletion(os.Stdout)
		case "fish":
			root.GenFishCompletion(os.Stdout, true)
		case "powershell":
			root.GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			log.Fatalf("unknown shell: %s", sh)
		}
	}
	root.AddCommand(comp)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
