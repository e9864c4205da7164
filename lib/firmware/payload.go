// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Encoding identifies how a source file is stored on disk. It is
// derived from the file extension only; contents are never sniffed.
type Encoding uint8

const (
	EncodingRaw Encoding = iota
	EncodingZstd
	EncodingLZ4
)

func (encoding Encoding) String() string {
	switch encoding {
	case EncodingRaw:
		return "raw"
	case EncodingZstd:
		return "zstd"
	case EncodingLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(encoding))
	}
}

// EncodingOf returns the encoding implied by path's extension: ".zst"
// is zstd, ".lz4" is an LZ4 frame, anything else is raw.
func EncodingOf(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		return EncodingZstd
	case ".lz4":
		return EncodingLZ4
	default:
		return EncodingRaw
	}
}

// DefaultMaxPayloadSize caps the decoded size of a compressed source.
// The largest linux-firmware blobs are a few tens of MiB.
const DefaultMaxPayloadSize = 512 << 20

// errPayloadTooLarge is wrapped by decodePayload when a compressed
// source expands past the limit.
var errPayloadTooLarge = errors.New("decompressed payload exceeds size limit")

// zstdDecoder is shared by all deliveries. Deliveries are sequential,
// so one decoder goroutine is enough. DecodeAll refuses output beyond
// DefaultMaxPayloadSize.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(DefaultMaxPayloadSize),
	)
	if err != nil {
		panic("firmware: zstd decoder initialization failed: " + err.Error())
	}
}

// decodePayload turns raw, the on-disk contents of the source at path,
// into the bytes to write to the data attribute. Raw sources are
// returned without copying and are not subject to limit. Decoded
// payloads larger than limit bytes are an error.
func decodePayload(path string, raw []byte, limit int64) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	switch EncodingOf(path) {
	case EncodingZstd:
		decoded, err := zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(decoded)) > limit {
			return nil, fmt.Errorf("zstd decompress: %w (%d bytes)", errPayloadTooLarge, limit)
		}
		return decoded, nil

	case EncodingLZ4:
		reader := io.LimitReader(lz4.NewReader(bytes.NewReader(raw)), limit+1)
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if int64(len(decoded)) > limit {
			return nil, fmt.Errorf("lz4 decompress: %w (%d bytes)", errPayloadTooLarge, limit)
		}
		return decoded, nil

	default:
		return raw, nil
	}
}

// digestPayload returns the hex BLAKE3-256 digest of payload, logged
// with each delivery so an operator can compare it against the file
// they expected the kernel to receive.
func digestPayload(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
