package manifest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when an address or bundle name is not indexed.
	ErrNotFound = errors.New("not found in manifest")
	// ErrMalformedManifest is returned when a document is missing required
	// fields or has dangling dependencies. Nothing is published.
	ErrMalformedManifest = errors.New("malformed manifest")
	// ErrDuplicateAddress is returned under DuplicateReject when two assets
	// anywhere in the document share an address, including within one bundle.
	ErrDuplicateAddress = errors.New("duplicate asset address")
)

// FileReader reads a manifest document from storage.
type FileReader func(path string) ([]byte, error)

// Option configures a Manifest.
type Option func(*Manifest)

// WithLogger sets the logger used for degraded lookups and cycle warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manifest) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDuplicatePolicy sets how duplicate asset addresses are handled.
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(m *Manifest) {
		m.duplicates = policy
	}
}

// WithFileReader replaces os.ReadFile for LoadFile.
func WithFileReader(read FileReader) Option {
	return func(m *Manifest) {
		if read != nil {
			m.read = read
		}
	}
}

// index is the published, immutable view built from one document.
type index struct {
	doc       *Document
	byAddress map[string]*BundleRecord
	byName    map[string]*BundleRecord
	packages  map[string]*PackageRecord
}

// Manifest is an indexed manifest document plus the dependency closure memo.
// It is safe for concurrent use; Reload swaps the whole index at once.
type Manifest struct {
	logger     *zap.Logger
	duplicates DuplicatePolicy
	read       FileReader

	mu       sync.RWMutex
	idx      *index
	closures map[string][]string
}

func newManifest(opts []Option) *Manifest {
	m := &Manifest{
		logger:   zap.NewNop(),
		read:     os.ReadFile,
		closures: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Parse decodes and indexes a manifest document.
func Parse(data []byte, format Format, opts ...Option) (*Manifest, error) {
	m := newManifest(opts)
	if err := m.Reload(data, format); err != nil {
		return nil, err
	}
	return m, nil
}

// FromDocument indexes an already decoded document.
func FromDocument(doc *Document, opts ...Option) (*Manifest, error) {
	m := newManifest(opts)
	idx, err := m.build(doc)
	if err != nil {
		return nil, err
	}
	m.idx = idx
	return m, nil
}

// LoadFile reads the manifest at path, choosing the format by extension.
func LoadFile(path string, opts ...Option) (*Manifest, error) {
	m := newManifest(opts)
	data, err := m.read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if err := m.Reload(data, FormatFromPath(path)); err != nil {
		return nil, err
	}
	m.logger.Info("Manifest loaded",
		zap.String("path", path),
		zap.Int("bundles", m.Len()),
	)
	return m, nil
}

// Reload replaces the indexed document. On error the previous index stays.
func (m *Manifest) Reload(data []byte, format Format) error {
	doc, err := decode(data, format)
	if err != nil {
		return err
	}
	idx, err := m.build(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.idx = idx
	m.closures = make(map[string][]string)
	m.mu.Unlock()
	return nil
}

// build validates doc and produces a fresh index without touching m's state.
func (m *Manifest) build(doc *Document) (*index, error) {
	idx := &index{
		doc:       doc,
		byAddress: make(map[string]*BundleRecord),
		byName:    make(map[string]*BundleRecord),
		packages:  make(map[string]*PackageRecord),
	}

	for _, pkg := range doc.Packages {
		if pkg == nil || pkg.Name == "" {
			return nil, fmt.Errorf("%w: package without name", ErrMalformedManifest)
		}
		idx.packages[pkg.Name] = pkg

		for _, group := range pkg.Groups {
			if group == nil {
				continue
			}
			for _, b := range group.Bundles {
				if b == nil || b.Name == "" {
					return nil, fmt.Errorf("%w: bundle without name in package %s", ErrMalformedManifest, pkg.Name)
				}
				if _, exists := idx.byName[b.Name]; exists {
					return nil, fmt.Errorf("%w: bundle %s declared twice", ErrMalformedManifest, b.Name)
				}
				b.PackageName = pkg.Name
				idx.byName[b.Name] = b

				for _, asset := range b.Assets {
					if asset == nil || asset.Address == "" {
						return nil, fmt.Errorf("%w: asset without address in bundle %s", ErrMalformedManifest, b.Name)
					}
					if prev, exists := idx.byAddress[asset.Address]; exists {
						if m.duplicates == DuplicateReject {
							return nil, fmt.Errorf("%w: %s in bundles %s and %s",
								ErrDuplicateAddress, asset.Address, prev.Name, b.Name)
						}
						m.logger.Warn("Duplicate asset address, keeping last",
							zap.String("address", asset.Address),
							zap.String("previous", prev.Name),
							zap.String("bundle", b.Name),
						)
					}
					idx.byAddress[asset.Address] = b
				}
			}
		}
	}

	// Dependencies must resolve within the same document.
	for _, b := range idx.byName {
		for _, dep := range b.Depends {
			if dep == b.Name {
				return nil, fmt.Errorf("%w: bundle %s depends on itself", ErrMalformedManifest, b.Name)
			}
			if _, ok := idx.byName[dep]; !ok {
				return nil, fmt.Errorf("%w: bundle %s depends on unknown bundle %s", ErrMalformedManifest, b.Name, dep)
			}
		}
	}

	return idx, nil
}

func (m *Manifest) current() *index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx
}

// Document returns the indexed document. Callers must not modify it.
func (m *Manifest) Document() *Document {
	return m.current().doc
}

// Version returns the manifest version string.
func (m *Manifest) Version() string {
	return m.current().doc.Version
}

// Len returns the number of bundles.
func (m *Manifest) Len() int {
	return len(m.current().byName)
}

// ResolveByAddress returns the bundle that contains address.
func (m *Manifest) ResolveByAddress(address string) (*BundleRecord, error) {
	if b, ok := m.current().byAddress[address]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("asset %q: %w", address, ErrNotFound)
}

// ResolveByName returns the bundle named name.
func (m *Manifest) ResolveByName(name string) (*BundleRecord, error) {
	if b, ok := m.current().byName[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("bundle %q: %w", name, ErrNotFound)
}

// Contains reports whether address is known.
func (m *Manifest) Contains(address string) bool {
	_, ok := m.current().byAddress[address]
	return ok
}

// Package returns the package record named name.
func (m *Manifest) Package(name string) (*PackageRecord, bool) {
	pkg, ok := m.current().packages[name]
	return pkg, ok
}

// DirectDependencies returns the bundles name depends on directly.
func (m *Manifest) DirectDependencies(name string) ([]string, error) {
	b, err := m.ResolveByName(name)
	if err != nil {
		return nil, err
	}
	return b.Depends, nil
}

// AssetPath returns the in-bundle path for address. When the bundle does not
// list the address, the address itself is returned and a warning is logged.
// The last listing wins, matching the index under DuplicateLastWriteWins.
func (m *Manifest) AssetPath(b *BundleRecord, address string) string {
	if address == "" {
		return ""
	}
	for i := len(b.Assets) - 1; i >= 0; i-- {
		if asset := b.Assets[i]; asset.Address == address {
			return asset.Path
		}
	}
	m.logger.Warn("Asset path not found, using address",
		zap.String("bundle", b.Name),
		zap.String("address", address),
	)
	return address
}

// Addresses returns every known address in sorted order.
func (m *Manifest) Addresses() []string {
	idx := m.current()
	out := make([]string, 0, len(idx.byAddress))
	for addr := range idx.byAddress {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Match returns the sorted addresses matching a doublestar glob.
func (m *Manifest) Match(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	var out []string
	for _, addr := range m.Addresses() {
		if ok, _ := doublestar.Match(pattern, addr); ok {
			out = append(out, addr)
		}
	}
	return out, nil
}

// Bundles returns every bundle name in sorted order.
func (m *Manifest) Bundles() []string {
	idx := m.current()
	out := make([]string, 0, len(idx.byName))
	for name := range idx.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Encode serializes the indexed document.
func (m *Manifest) Encode(format Format) ([]byte, error) {
	return Encode(m.Document(), format)
}
