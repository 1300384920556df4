// Package dirbrowser lists directories under the media root for clients.
package dirbrowser

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go2tv.app/beamdeck/internal/domain"
)

type Browser struct {
	root string
}

func New(root string) *Browser {
	return &Browser{root: filepath.Clean(root)}
}

func (b *Browser) Root() string {
	return b.root
}

// Path joins segments onto the root. Paths that would leave the root are a
// DirectoryError.
func (b *Browser) Path(segments []string) (string, error) {
	full := filepath.Join(append([]string{b.root}, segments...)...)
	rel, err := filepath.Rel(b.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.DirectoryError("path is outside the media root", err)
	}
	return full, nil
}

// List returns the entries of the directory at segments, directories first
// and then by name. Entries that cannot be stat'ed are left out.
func (b *Browser) List(segments []string) ([]domain.DirEntry, error) {
	dir, err := b.Path(segments)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.DirectoryError("cannot list "+dir, err)
	}

	files := make([]domain.DirEntry, 0, len(entries))
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		kind := domain.KindDirectory
		if info.Mode().IsRegular() {
			kind = domain.KindFile
		}
		files = append(files, domain.DirEntry{
			Name:         entry.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().UnixMilli(),
			Kind:         kind,
		})
	}

	slices.SortFunc(files, func(a, b domain.DirEntry) int {
		if c := cmp.Compare(kindRank(a.Kind), kindRank(b.Kind)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return files, nil
}

// Resolve returns the absolute path of the regular file name inside the
// directory at segments.
func (b *Browser) Resolve(segments []string, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", domain.ValidationError("invalid file name")
	}
	dir, err := b.Path(segments)
	if err != nil {
		return "", domain.NewError(domain.CodeValidation, "invalid directory", err)
	}

	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil {
		return "", domain.NewError(domain.CodeValidation, "file not found", err)
	}
	if !info.Mode().IsRegular() {
		return "", domain.ValidationError(name + " is not a file")
	}

	abs, err := filepath.Abs(full)
	if err != nil {
		return "", domain.NewError(domain.CodeValidation, "cannot resolve path", err)
	}
	return abs, nil
}

func kindRank(kind string) int {
	if kind == domain.KindDirectory {
		return 0
	}
	return 1
}
