package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"
)

// Inventory compares the files under a bundle root with the bundle files
// the manifests expect there.
type Inventory struct {
	Root     string   `json:"root"`
	Present  []string `json:"present"`
	Missing  []string `json:"missing"`
	Orphans  []string `json:"orphans"`
	Bytes    int64    `json:"bytes"`
	Readable string   `json:"readable"`
}

// Scan walks root. expected maps bundle names to file paths; files under
// root that are neither expected nor listed in ignore are reported as
// orphans, relative to root.
func Scan(ctx context.Context, root string, expected map[string]string, ignore ...string) (*Inventory, error) {
	byPath := make(map[string]string, len(expected))
	for name, p := range expected {
		byPath[filepath.Clean(p)] = name
	}
	skip := make(map[string]struct{}, len(ignore))
	for _, p := range ignore {
		skip[filepath.Clean(p)] = struct{}{}
	}

	inv := &Inventory{Root: root, Present: []string{}, Missing: []string{}, Orphans: []string{}}
	found := make(map[string]struct{})
	var mu sync.Mutex

	// A missing root is an empty store.
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return inv.finish(expected, found), nil
	}

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		p = filepath.Clean(p)
		mu.Lock()
		defer mu.Unlock()
		if name, ok := byPath[p]; ok {
			found[name] = struct{}{}
			inv.Bytes += info.Size()
			return nil
		}
		if _, ok := skip[p]; ok {
			return nil
		}
		if rel, err := filepath.Rel(root, p); err == nil {
			inv.Orphans = append(inv.Orphans, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv.finish(expected, found), nil
}

func (inv *Inventory) finish(expected map[string]string, found map[string]struct{}) *Inventory {
	for name := range expected {
		if _, ok := found[name]; ok {
			inv.Present = append(inv.Present, name)
		} else {
			inv.Missing = append(inv.Missing, name)
		}
	}
	sort.Strings(inv.Present)
	sort.Strings(inv.Missing)
	sort.Strings(inv.Orphans)
	inv.Readable = humanize.IBytes(uint64(inv.Bytes))
	return inv
}

// Prune removes the orphans of inv and returns how many were removed.
func Prune(inv *Inventory) (int, error) {
	removed := 0
	var errs []error
	for _, rel := range inv.Orphans {
		if err := os.Remove(filepath.Join(inv.Root, filepath.FromSlash(rel))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
