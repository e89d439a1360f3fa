package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/dirworld/internal/ingest"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var selectExpr string

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Print the payload embedded in a file or room",
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

		entry := ingest.Extract(osfs.New("/"), path, codecs, ingest.Options{Marker: cfg.Marker, Logger: newLogger(cfg)})
		out := cmd.OutOrStdout()
		if entry.Payload == nil {
			_, _ = fmt.Fprintf(out, "%s: no payload (%d carrier bytes)\n", args[0], len(entry.Carrier))
			return nil
		}

		if selectExpr == "" {
			data, err := ingest.Generic(entry.Payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, oj.JSON(data, &oj.Options{Indent: 2, Sort: true}))
			return nil
		}
		values, err := ingest.Select(entry.Payload, selectExpr)
		if err != nil {
			return err
		}
		for _, v := range values {
			_, _ = fmt.Fprintln(out, oj.JSON(v))
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&selectExpr, "select", "", "JSONPath expression to print instead of the whole payload")
	rootCmd.AddCommand(inspectCmd)
}
