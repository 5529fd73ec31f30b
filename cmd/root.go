package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"roombot/config"
	"roombot/database"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the roombot CLI. Without a subcommand it runs the bot.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "roombot",
		Short:        "Referral economy and duel bot for Discord",
		SilenceUsage: true,
		RunE:         runBot,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the Discord bot",
			RunE:  runBot,
		},
		newMigrateCommand(),
	)

	return root
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx)
}

func newMigrateCommand() *cobra.Command {
	var databaseURL string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = config.DatabaseURLFromEnv()
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --database-url is required")
			}
			return nil
		},
	}
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL (defaults to DATABASE_URL)")

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.MigrateUp(databaseURL)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("invalid steps %q", args[0])
					}
					steps = n
				}
				return database.MigrateDown(databaseURL, steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.MigrateStatus(databaseURL)
			},
		},
	)

	return migrateCmd
}
