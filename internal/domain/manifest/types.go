package manifest

import "fmt"

// Document is the on-disk manifest written by the build pipeline.
type Document struct {
	Version  string           `json:"version" yaml:"version" toml:"version"`
	Time     int64            `json:"time" yaml:"time" toml:"time"`
	Packages []*PackageRecord `json:"packages" yaml:"packages" toml:"packages"`
}

// PackageRecord groups bundles that share an encryption and compression setup.
type PackageRecord struct {
	Name         string         `json:"name" yaml:"name" toml:"name"`
	EncryptRule  string         `json:"encryptRule" yaml:"encryptRule" toml:"encryptRule"`
	CompressMode string         `json:"compressMode" yaml:"compressMode" toml:"compressMode"`
	Groups       []*GroupRecord `json:"groups" yaml:"groups" toml:"groups"`
}

// GroupRecord owns a list of bundles.
type GroupRecord struct {
	Name     string          `json:"name" yaml:"name" toml:"name"`
	Language string          `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
	Bundles  []*BundleRecord `json:"bundles" yaml:"bundles" toml:"bundles"`
}

// BundleRecord describes one bundle file and the assets packed into it.
// Records are read-only once the manifest is indexed.
type BundleRecord struct {
	Name    string         `json:"name" yaml:"name" toml:"name"`
	Hash    string         `json:"hash" yaml:"hash" toml:"hash"`
	CRC     uint32         `json:"crc" yaml:"crc" toml:"crc"`
	Assets  []*AssetRecord `json:"assets" yaml:"assets" toml:"assets"`
	Depends []string       `json:"depends" yaml:"depends" toml:"depends"`

	// PackageName is filled in during indexing.
	PackageName string `json:"-" yaml:"-" toml:"-"`
}

// AssetRecord maps a stable address to a path inside a bundle.
type AssetRecord struct {
	Address string   `json:"address" yaml:"address" toml:"address"`
	Path    string   `json:"assetPath" yaml:"assetPath" toml:"assetPath"`
	GUID    string   `json:"assetGuid" yaml:"assetGuid" toml:"assetGuid"`
	Tags    []string `json:"assetTags,omitempty" yaml:"assetTags,omitempty" toml:"assetTags,omitempty"`
}

// HasTag reports whether the asset carries tag.
func (a *AssetRecord) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DuplicatePolicy decides what happens when two assets share an address.
type DuplicatePolicy int

const (
	// DuplicateReject fails the load with ErrDuplicateAddress.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateLastWriteWins keeps the bundle indexed last.
	DuplicateLastWriteWins
)

// String returns the config name of the policy
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReject:
		return "reject"
	case DuplicateLastWriteWins:
		return "last-write-wins"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy parses the config name of a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicateReject, nil
	case "last-write-wins", "lww":
		return DuplicateLastWriteWins, nil
	default:
		return DuplicateReject, fmt.Errorf("unknown duplicate policy %q", s)
	}
}
