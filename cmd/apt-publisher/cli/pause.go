package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Skip cycles until resumed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.Poll.PauseFile); err == nil {
			fmt.Println("no change (already paused)")
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(cfg.Poll.PauseFile), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Poll.PauseFile, nil, 0o644); err != nil {
			return err
		}

		fmt.Printf("paused: %s\n", cfg.Poll.PauseFile)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume cycles after pause",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		err = os.Remove(cfg.Poll.PauseFile)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("no change (not paused)")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println("resumed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd)
}
