package cli

import (
	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/davarch/apt-publisher/internal/infrastructure/control_json"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Regenerate the Packages index from the current pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		control, err := control_json.New(cfg.Package.ControlFile).Load(cmd.Context())
		if err != nil {
			return err
		}

		lock := repoLock(cfg)
		if err := lock.Acquire(); err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()

		repo := newRepository(cfg)
		if err := repo.Reindex(cmd.Context(), control.Package(), control.Architecture()); err != nil {
			return err
		}

		cmd.Printf("reindexed %s\n", repo.IndexPath(control.Architecture()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
