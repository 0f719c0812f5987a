package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luke-gs/cadsync/internal/app"
)

var opts app.Options

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cadsync",
		Short: "Dispatch console for field units",
		Long: `cadsync keeps a local copy of the dispatch picture (incidents, resources,
patrols and broadcasts) in sync with the CAD server, and lets a crew book on,
change status and work incidents from a terminal.

Run without a subcommand to start the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}
	addPersistentFlags(root)
	registerCommands(root)
	return root
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cadsync: %v\n", err)
		return 1
	}
	return 0
}

func addPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/cadsync/config.toml)")
	flags.StringVar(&opts.PrefsPath, "prefs", "", "preferences file (default ~/.config/cadsync/prefs.toml)")
	flags.StringVar(&opts.Callsign, "callsign", "", "callsign override")
	flags.StringVar(&opts.PatrolGroup, "patrol-group", "", "patrol group override")
	flags.IntVar(&opts.PollEvery, "poll", 0, "background sync interval in seconds")
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(
		listCmd(),
		incidentCmd(),
		bookOnCmd(),
		statusCmd(),
		logsCmd(),
	)
}
