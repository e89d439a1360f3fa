package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// ParentEntry is the name of the pseudo entry leading back up a level.
const ParentEntry = ".."

// ListRoom returns the entry paths of room dir in name order. Dotfiles are
// left out. Unless dir is the world root, the list starts with dir/.. so the
// way back up is itself an entry.
func ListRoom(fsys billy.Filesystem, dir, root string) ([]string, error) {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list room %s: %w", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if IsHidden(info.Name()) {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)

	out := make([]string, 0, len(names)+1)
	if filepath.Clean(dir) != filepath.Clean(root) {
		out = append(out, ParentPath(dir))
	}
	for _, n := range names {
		out = append(out, filepath.Join(dir, n))
	}
	return out, nil
}

// ParentPath returns the uncleaned dir/.. path used as the identity of the
// parent pseudo entry. It must not be cleaned, or it would collide with the
// parent folder's own entry.
func ParentPath(dir string) string {
	return strings.TrimRight(dir, string(filepath.Separator)) + string(filepath.Separator) + ParentEntry
}

// IsParent reports whether p names a parent pseudo entry.
func IsParent(p string) bool {
	return filepath.Base(p) == ParentEntry
}

// IsHidden reports whether a base name is a dotfile.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
