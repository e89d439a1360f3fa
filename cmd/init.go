package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/writeback"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var entityName string

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Give a file or room a fresh payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		codecs, err := cfg.Registry()
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		p := api.NewPayload()
		if entityName != "" {
			p.Name = &entityName
		}
		opts := writeback.Options{Marker: cfg.Marker, Logger: newLogger(cfg)}
		if err := writeback.Save(osfs.New("/"), codecs, path, p, opts); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], p.ID)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&entityName, "name", "", "Display name")
	rootCmd.AddCommand(initCmd)
}
