package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
)

var sampleFiles = map[string][]byte{
	"Assets/icon.png":  []byte("\x89PNG\r\n\x1a\nnot really a png"),
	"Assets/font.ttf":  []byte("glyphs glyphs glyphs glyphs"),
	"Assets/readme.md": []byte("# hello"),
}

func memReader(files map[string][]byte) FileReader {
	return func(_ context.Context, path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return data, nil
	}
}

func TestPackAndOpen(t *testing.T) {
	rules := []Rule{None{}, Offset{}, XOR{}}
	modes := []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4}

	for _, rule := range rules {
		for _, mode := range modes {
			t.Run(rule.Name()+"/"+mode.String(), func(t *testing.T) {
				data, crc, err := Pack(sampleFiles, rule, mode)
				require.NoError(t, err)

				l := NewLoader(rule, mode, WithFileReader(memReader(map[string][]byte{"b": data})))
				a, err := l.Open(context.Background(), "b", crc)
				require.NoError(t, err)

				assert.Equal(t, int64(len(data)), a.Size())
				assert.Equal(t, []string{"Assets/font.ttf", "Assets/icon.png", "Assets/readme.md"}, a.Names())

				asset, err := a.LoadAsset("Assets/font.ttf")
				require.NoError(t, err)
				require.NotNil(t, asset)
				assert.Equal(t, sampleFiles["Assets/font.ttf"], asset.Bytes())
			})
		}
	}
}

func TestChecksumMismatch(t *testing.T) {
	data, crc, err := Pack(sampleFiles, None{}, CompressionNone)
	require.NoError(t, err)

	l := NewLoader(None{}, CompressionNone, WithFileReader(memReader(map[string][]byte{"b": data})))
	_, err = l.Load("b", crc+1)
	assert.True(t, errors.Is(err, ErrChecksum))

	// Zero skips the check.
	_, err = l.Load("b", 0)
	assert.NoError(t, err)
}

func TestWrongRuleFails(t *testing.T) {
	data, _, err := Pack(sampleFiles, XOR{}, CompressionGzip)
	require.NoError(t, err)

	l := NewLoader(None{}, CompressionGzip, WithFileReader(memReader(map[string][]byte{"b": data})))
	_, err = l.Load("b", 0)
	assert.Error(t, err)
}

func TestOffsetShortBundle(t *testing.T) {
	_, err := Offset{}.Decrypt([]byte{1, 2})
	assert.True(t, errors.Is(err, ErrShortBundle))

	enc := Offset{}.Encrypt([]byte("abc"))
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 'a', 'b', 'c'}, enc)
}

func TestXORIsSymmetric(t *testing.T) {
	in := []byte("payload")
	enc := XOR{}.Encrypt(in)
	assert.NotEqual(t, in, enc)
	assert.Equal(t, byte('p'^0xAB), enc[0])

	out, err := XOR{}.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want string
		err  bool
	}{
		{"", "none", false},
		{"offset", "offset", false},
		{"stream", "xor", false},
		{"aes", "", true},
	}
	for _, tt := range tests {
		rule, err := ParseRule(tt.name)
		if tt.err {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, rule.Name())
	}

	c, err := ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)
	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestOpenCancelled(t *testing.T) {
	data, _, err := Pack(sampleFiles, None{}, CompressionNone)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(None{}, CompressionNone, WithFileReader(memReader(map[string][]byte{"b": data})))
	_, err = l.LoadContext(ctx, "b", 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMissingFile(t *testing.T) {
	l := NewLoader(nil, CompressionNone, WithFileReader(memReader(nil)))
	b, err := l.Load("nope", 0)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReleaseUnloadsIssuedAssets(t *testing.T) {
	data, _, err := Pack(sampleFiles, None{}, CompressionNone)
	require.NoError(t, err)
	l := NewLoader(None{}, CompressionNone, WithFileReader(memReader(map[string][]byte{"b": data})))

	a, err := l.Open(context.Background(), "b", 0)
	require.NoError(t, err)
	asset, err := a.LoadAsset("Assets/readme.md")
	require.NoError(t, err)

	missing, err := a.LoadAsset("Assets/none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	a.Release(true)
	assert.True(t, asset.Unloaded())
	assert.Nil(t, asset.Bytes())

	_, err = a.LoadAsset("Assets/readme.md")
	assert.True(t, errors.Is(err, ErrReleased))
}

func TestReleaseKeepsIssuedAssets(t *testing.T) {
	data, _, err := Pack(sampleFiles, None{}, CompressionNone)
	require.NoError(t, err)
	l := NewLoader(None{}, CompressionNone, WithFileReader(memReader(map[string][]byte{"b": data})))

	a, err := l.Open(context.Background(), "b", 0)
	require.NoError(t, err)
	asset, err := a.LoadAsset("Assets/readme.md")
	require.NoError(t, err)

	a.Release(false)
	assert.False(t, asset.Unloaded())
	assert.Equal(t, []byte("# hello"), asset.Bytes())
}

// TestCacheOverArchives drives the bundle cache end to end against packed
// files on disk.
func TestCacheOverArchives(t *testing.T) {
	root := t.TempDir()
	coreData, coreCRC, err := Pack(map[string][]byte{"Assets/font.ttf": []byte("font")}, Offset{}, CompressionZstd)
	require.NoError(t, err)
	uiData, uiCRC, err := Pack(map[string][]byte{"Assets/icon.png": []byte("icon")}, Offset{}, CompressionZstd)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "main"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main", "b_core"), coreData, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main", "b_ui"), uiData, 0o644))

	doc := &manifest.Document{
		Version: "1",
		Packages: []*manifest.PackageRecord{{
			Name:         "main",
			EncryptRule:  "offset",
			CompressMode: "zstd",
			Groups: []*manifest.GroupRecord{{Name: "ui", Bundles: []*manifest.BundleRecord{
				{Name: "b_core", CRC: coreCRC, Assets: []*manifest.AssetRecord{{Address: "font", Path: "Assets/font.ttf"}}},
				{Name: "b_ui", CRC: uiCRC, Depends: []string{"b_core"}, Assets: []*manifest.AssetRecord{{Address: "icon", Path: "Assets/icon.png"}}},
			}}},
		}},
	}
	m, err := manifest.FromDocument(doc)
	require.NoError(t, err)
	providers, err := Providers(doc)
	require.NoError(t, err)

	c := bundle.NewCache(m, providers, bundle.WithRoot(root))
	asset, err := c.LoadAssetContext(context.Background(), "icon")
	require.NoError(t, err)
	assert.Equal(t, []byte("icon"), asset.Bytes())
	assert.Equal(t, []string{"b_core", "b_ui"}, c.LoadedNames())

	require.NoError(t, c.Release("icon", true))
	assert.Equal(t, 0, c.Len())
	assert.True(t, asset.Unloaded())
}

func TestProvidersRejectsUnknownRule(t *testing.T) {
	_, err := Providers(&manifest.Document{Packages: []*manifest.PackageRecord{{Name: "p", EncryptRule: "rot13"}}})
	assert.Error(t, err)
}
