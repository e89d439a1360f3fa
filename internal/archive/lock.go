// Package archive folds a room directory into one encrypted file and back.
//
// Lock runs pack, compress, encrypt, write, remove. Every step before the
// write leaves the directory untouched, so a bad key or a failed pack cannot
// lose data. A failure after the write may leave both the archive and part
// of the directory behind; nothing is rolled back.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Extension is the dotted extension of a locked room.
const Extension = "tar.xz.aes"

// ArchivePath returns the archive a locked dir is written to.
func ArchivePath(dir string) string {
	return strings.TrimRight(dir, string(filepath.Separator)) + "." + Extension
}

// RestoredPath returns the directory an archive unlocks into.
func RestoredPath(archivePath string) string {
	return filepath.Join(filepath.Dir(archivePath), codec.Stem(archivePath))
}

// IsArchive reports whether p names a locked room.
func IsArchive(p string) bool {
	return codec.Extension(p) == Extension
}

// Lock archives dir into ArchivePath(dir) and removes dir.
func Lock(fsys billy.Filesystem, dir string, key []byte) (string, error) {
	if _, err := cipherKey(key); err != nil {
		return "", fmt.Errorf("lock %s: %w", dir, err)
	}
	tarball, err := Pack(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", dir, err)
	}
	compressed, err := Compress(tarball)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", dir, err)
	}
	sealed, err := Encrypt(key, compressed)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", dir, err)
	}

	out := ArchivePath(dir)
	if err := util.WriteFile(fsys, out, sealed, 0o644); err != nil {
		return "", fmt.Errorf("lock %s: write archive: %w", dir, err)
	}
	if err := util.RemoveAll(fsys, dir); err != nil {
		return "", fmt.Errorf("lock %s: remove directory: %w", dir, err)
	}
	return out, nil
}

// Unlock restores the directory sealed in ciphertext, which must be the
// archive carrier with any embedded payload already stripped, and removes
// the archive file.
func Unlock(fsys billy.Filesystem, archivePath string, ciphertext, key []byte) (string, error) {
	compressed, err := Decrypt(key, ciphertext)
	if err != nil {
		return "", fmt.Errorf("unlock %s: %w", archivePath, err)
	}
	tarball, err := Decompress(compressed)
	if err != nil {
		return "", fmt.Errorf("unlock %s: %w", archivePath, err)
	}
	parent := filepath.Dir(archivePath)
	if err := Unpack(fsys, parent, tarball); err != nil {
		return "", fmt.Errorf("unlock %s: %w", archivePath, err)
	}
	if err := fsys.Remove(archivePath); err != nil {
		return "", fmt.Errorf("unlock %s: remove archive: %w", archivePath, err)
	}
	dir := RestoredPath(archivePath)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unlock %s: %w", archivePath, err)
	}
	return dir, nil
}
