package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X main.version=..." by the release build.
var version = "dev"

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "gameshelf",
		Short: "Gameshelf - Static arcade site builder",
		Long: `Gameshelf builds a static website for a collection of open source games.
It clones each game's repository, runs its build steps under a bounded worker
pool, and renders an index page linking every game that built successfully.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
