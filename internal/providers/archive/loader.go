package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

// ErrChecksum is returned when a bundle file does not match its manifest CRC.
var ErrChecksum = errors.New("bundle checksum mismatch")

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// FileReader returns the raw bytes of a bundle file.
type FileReader func(ctx context.Context, path string) ([]byte, error)

// ReadFile is the default FileReader.
func ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WithFileReader replaces ReadFile, for example with a remote fetcher.
func WithFileReader(read FileReader) Option {
	return func(l *Loader) {
		if read != nil {
			l.read = read
		}
	}
}

// Loader opens bundle archives written by Pack.
type Loader struct {
	rule        Rule
	compression Compression
	logger      *zap.Logger
	read        FileReader
}

// NewLoader creates a loader for one package's rule and compression.
func NewLoader(rule Rule, compression Compression, opts ...Option) *Loader {
	if rule == nil {
		rule = None{}
	}
	l := &Loader{
		rule:        rule,
		compression: compression,
		logger:      zap.NewNop(),
		read:        ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load opens the bundle at path. A zero checksum skips verification.
func (l *Loader) Load(path string, checksum uint32) (bundle.Bundle, error) {
	return l.LoadContext(context.Background(), path, checksum)
}

// LoadContext is Load with cancellation between archive entries.
func (l *Loader) LoadContext(ctx context.Context, path string, checksum uint32) (bundle.Bundle, error) {
	a, err := l.Open(ctx, path, checksum)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Open reads, verifies, decrypts and unpacks the bundle at file.
func (l *Loader) Open(ctx context.Context, file string, checksum uint32) (*Archive, error) {
	start := time.Now()

	raw, err := l.read(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	if checksum != 0 {
		if got := crc32.ChecksumIEEE(raw); got != checksum {
			return nil, fmt.Errorf("%w: %s: want %08x, got %08x", ErrChecksum, file, checksum, got)
		}
	}

	plain, err := l.rule.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypt bundle (%s): %w", l.rule.Name(), err)
	}
	r, err := decompressor(plain, l.compression)
	if err != nil {
		return nil, err
	}

	files, err := untar(ctx, r)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Opened bundle archive",
		zap.String("path", file),
		zap.Int("assets", len(files)),
		zap.String("rule", l.rule.Name()),
		zap.Stringer("compression", l.compression),
		zap.Duration("duration", time.Since(start)),
	)

	return &Archive{
		path:  file,
		size:  int64(len(raw)),
		files: files,
	}, nil
}

func untar(ctx context.Context, r io.Reader) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	files := make(map[string][]byte)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		files[path.Clean(header.Name)] = data
	}
}
