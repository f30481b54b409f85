package cli

import (
	"encoding/json"
	"os"

	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/davarch/apt-publisher/internal/infrastructure/control_json"
	"github.com/davarch/apt-publisher/internal/infrastructure/repo_fs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List published versions in the pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		ctl, err := control_json.New(cfg.Package.ControlFile).Load(cmd.Context())
		if err != nil {
			return err
		}

		items, err := newRepository(cfg).Artifacts(ctl.Package())
		if err != nil {
			return err
		}

		if listJSON {
			if items == nil {
				items = []repo_fs.Artifact{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"PACKAGE", "VERSION", "ARCH", "FILE"})
		for _, a := range items {
			t.AppendRow(table.Row{a.Package, a.Version, a.Arch, a.File})
		}
		t.Render()
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	rootCmd.AddCommand(listCmd)
}
