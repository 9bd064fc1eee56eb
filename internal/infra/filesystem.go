package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charon-kb/charon/internal/domain"
)

// MaxTextFileSize bounds files accepted for typing.
const MaxTextFileSize = 1 << 20

// FileSystemImpl implements domain.FileSystem.
type FileSystemImpl struct {
	homeDir string
}

// NewFileSystem creates a new filesystem helper.
func NewFileSystem() domain.FileSystem {
	return &FileSystemImpl{homeDir: GetRealUserHome()}
}

// NewFileSystemWithHome creates a filesystem helper with custom home (for testing).
func NewFileSystemWithHome(home string) domain.FileSystem {
	return &FileSystemImpl{homeDir: home}
}

// ReadText reads a whole file after ~ expansion.
func (fs *FileSystemImpl) ReadText(path string) (string, error) {
	expanded := fs.ExpandHome(path)

	info, err := os.Stat(expanded)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", expanded)
	}
	if info.Size() > MaxTextFileSize {
		return "", fmt.Errorf("%s is too large to type (%d bytes)", expanded, info.Size())
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Remove deletes a single file after ~ expansion.
func (fs *FileSystemImpl) Remove(path string) error {
	return os.Remove(fs.ExpandHome(path))
}

// ExpandHome expands ~ to the user's home directory.
func (fs *FileSystemImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fs.homeDir, path[2:])
	}
	if path == "~" {
		return fs.homeDir
	}
	return path
}

// Ensure FileSystemImpl implements domain.FileSystem.
var _ domain.FileSystem = (*FileSystemImpl)(nil)
