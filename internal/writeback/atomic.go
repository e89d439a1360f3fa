package writeback

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// TempPrefix starts the name of every temp file written here. It is a
// dotfile so rooms and the watcher never see it.
const TempPrefix = ".dirworld-save-"

// WriteAtomic replaces name with data: content is written to a temp file in
// the same directory first, then renamed over the target.
func WriteAtomic(fsys billy.Filesystem, name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := util.TempFile(fsys, dir, TempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	// Keep the target's permissions when it already exists.
	if ch, ok := fsys.(billy.Change); ok {
		mode := perm
		if info, err := fsys.Stat(name); err == nil {
			mode = info.Mode().Perm()
		}
		_ = ch.Chmod(tmpName, mode) // best-effort permission sync
	}

	if err := fsys.Rename(tmpName, name); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return nil
}
