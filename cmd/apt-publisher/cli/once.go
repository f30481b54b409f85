package cli

import (
	"fmt"

	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single publish cycle and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		lock := repoLock(cfg)
		if err := lock.Acquire(); err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()

		rep := newScheduler(cfg, log).RunCycle(cmd.Context())
		if rep.Failed() {
			return fmt.Errorf("cycle failed at %s: %w", rep.Stage, rep.Err)
		}

		cmd.Printf("%s %s\n", rep.Outcome, rep.Artifact)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
