package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/bootstrap"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/config"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status]",
	Short: "Run database migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		return migrations.Up(db)
	case "down":
		return migrations.Down(db)
	case "status":
		return migrations.Status(db)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}
