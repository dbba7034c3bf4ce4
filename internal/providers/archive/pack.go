package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"hash/crc32"
	"path"
	"sort"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
)

// Pack builds a bundle file from asset path to contents. It returns the
// on-disk bytes and their CRC32, the value a manifest records as crc.
func Pack(files map[string][]byte, rule Rule, c Compression) ([]byte, uint32, error) {
	if rule == nil {
		rule = None{}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		data := files[name]
		header := &tar.Header{
			Name:     path.Clean(name),
			Mode:     0o644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, 0, fmt.Errorf("write header %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, 0, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, 0, fmt.Errorf("close archive: %w", err)
	}

	compressed, err := compress(buf.Bytes(), c)
	if err != nil {
		return nil, 0, err
	}
	out := rule.Encrypt(compressed)
	return out, crc32.ChecksumIEEE(out), nil
}

// Providers builds one loader per manifest package from its encryptRule and
// compressMode.
func Providers(doc *manifest.Document, opts ...Option) (bundle.Providers, error) {
	providers := make(bundle.Providers, len(doc.Packages))
	for _, pkg := range doc.Packages {
		rule, err := ParseRule(pkg.EncryptRule)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		c, err := ParseCompression(pkg.CompressMode)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		providers[pkg.Name] = NewLoader(rule, c, opts...)
	}
	return providers, nil
}
