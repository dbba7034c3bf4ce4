package archive

import (
	"errors"
	"fmt"
)

// ErrShortBundle is returned when an encrypted bundle is smaller than its header.
var ErrShortBundle = errors.New("bundle shorter than encryption header")

// Rule is a package encryption rule. Encrypt runs at build time, Decrypt when
// a bundle is opened.
type Rule interface {
	Name() string
	Encrypt(data []byte) []byte
	Decrypt(data []byte) ([]byte, error)
}

const (
	offsetHeader = 6
	xorKey       = 0xAB
)

// None stores bundles as is.
type None struct{}

func (None) Name() string                        { return "none" }
func (None) Encrypt(data []byte) []byte          { return data }
func (None) Decrypt(data []byte) ([]byte, error) { return data, nil }

// Offset prefixes bundles with a fixed junk header that plain readers choke on.
type Offset struct{}

func (Offset) Name() string { return "offset" }

func (Offset) Encrypt(data []byte) []byte {
	out := make([]byte, len(data)+offsetHeader)
	for i := 0; i < offsetHeader; i++ {
		out[i] = byte(i)
	}
	copy(out[offsetHeader:], data)
	return out
}

func (Offset) Decrypt(data []byte) ([]byte, error) {
	if len(data) < offsetHeader {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBundle, len(data))
	}
	return data[offsetHeader:], nil
}

// XOR flips every byte against a single-byte key.
type XOR struct{}

func (XOR) Name() string { return "xor" }

func (XOR) Encrypt(data []byte) []byte {
	return xor(data)
}

func (XOR) Decrypt(data []byte) ([]byte, error) {
	return xor(data), nil
}

func xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ xorKey
	}
	return out
}

// ParseRule returns the rule for a manifest encryptRule value.
func ParseRule(name string) (Rule, error) {
	switch name {
	case "", "none":
		return None{}, nil
	case "offset":
		return Offset{}, nil
	case "xor", "stream":
		return XOR{}, nil
	default:
		return nil, fmt.Errorf("unknown encrypt rule: %q", name)
	}
}
