package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Large values are stored as an lz4 block behind an 8-byte magic and a
// 4-byte little-endian uncompressed size, the same framing Firefox uses for
// its mozlz4 session files.
var lz4Magic = []byte("nbLz40\x00\x00")

const (
	lz4HeaderSize    = 12
	compressMinBytes = 1024
)

// encodeValue compresses data when it is large enough to benefit.
func encodeValue(data []byte) ([]byte, error) {
	if len(data) < compressMinBytes {
		return data, nil
	}
	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: compress failed: %w", err)
	}
	// n == 0 means incompressible.
	if n == 0 || n+lz4HeaderSize >= len(data) {
		return data, nil
	}
	copy(buf, lz4Magic)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(data)))
	return buf[:lz4HeaderSize+n], nil
}

// decodeValue reverses encodeValue. Values without the magic are returned
// unchanged.
func decodeValue(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize || !bytes.HasPrefix(data, lz4Magic) {
		return data, nil
	}
	size := binary.LittleEndian.Uint32(data[8:12])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[lz4HeaderSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("lz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}
