package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/davarch/apt-publisher/internal/infrastructure/lock_flock"
	"github.com/davarch/apt-publisher/internal/infrastructure/status_fs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the last cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		rec, err := status_fs.New(cfg.Status.Path).Read()
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("no cycle recorded yet")
			return nil
		}
		if err != nil {
			return err
		}

		paused := "no"
		if _, err := os.Stat(cfg.Poll.PauseFile); err == nil {
			paused = "yes"
		}

		locked := "no"
		probe := repoLock(cfg)
		if _, err := os.Stat(probe.Path()); err == nil {
			if err := probe.Acquire(); errors.Is(err, lock_flock.ErrLocked) {
				locked = "yes"
			} else if err == nil {
				_ = probe.Release()
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendRows([]table.Row{
			{"run", rec.RunID},
			{"finished", time.Unix(rec.Finished, 0).Format(time.RFC3339)},
			{"outcome", rec.Outcome},
			{"stage", rec.Stage},
			{"tag", rec.Tag},
			{"version", rec.Version},
			{"artifact", rec.Artifact},
			{"error", rec.Error},
			{"paused", paused},
			{"locked", locked},
		})
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
