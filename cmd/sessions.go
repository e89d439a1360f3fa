package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List running dirworld sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := listSessions()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range sessions {
			state := "running"
			if !isProcessRunning(s.PID) {
				state = "stale"
			}
			_, _ = fmt.Fprintf(out, "%-8d %-8s %s  (since %s)\n", s.PID, state, s.Root, s.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
