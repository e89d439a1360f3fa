package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/dirworld/internal/archive"
	"github.com/agentic-research/dirworld/internal/config"
	"github.com/agentic-research/dirworld/internal/tasks"
	"github.com/agentic-research/dirworld/internal/world"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var doorKey string

var lockCmd = &cobra.Command{
	Use:   "lock [dir]",
	Short: "Seal a room into an encrypted archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoorJob(cmd, args[0], (*world.World).LockDoor, archive.ArchivePath)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [archive]",
	Short: "Restore a sealed room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoorJob(cmd, args[0], (*world.World).UnlockDoor, archive.RestoredPath)
	},
}

func init() {
	for _, c := range []*cobra.Command{lockCmd, unlockCmd} {
		c.Flags().StringVarP(&doorKey, "key", "k", "", "Key, at least 16 bytes")
		_ = c.MarkFlagRequired("key")
		rootCmd.AddCommand(c)
	}
}

type doorOp func(w *world.World, path string, key []byte) (tasks.JobID, error)

// runDoorJob opens a world on the parent of path, runs one lock or unlock
// job to completion and applies its deferred commands.
func runDoorJob(cmd *cobra.Command, target string, op doorOp, result func(string) string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	w, err := openWorld(cfg, filepath.Dir(path))
	if err != nil {
		return err
	}
	defer w.Close()

	var jobErr error
	w.Subscribe(func(n world.Notification) {
		if n.Kind == world.JobFinished {
			jobErr = n.Err
		}
	})
	if _, err := op(w, path, []byte(doorKey)); err != nil {
		return err
	}
	if err := w.Wait(cmd.Context()); err != nil {
		return err
	}
	w.Tick()
	if jobErr != nil {
		return jobErr
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), result(path))
	return nil
}

func openWorld(cfg config.Config, root string) (*world.World, error) {
	codecs, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	w := world.New(world.Options{
		FS:     osfs.New("/"),
		Codecs: codecs,
		Logger: newLogger(cfg),
		Marker: cfg.Marker,
	})
	if err := w.ChangeRoot(root); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
