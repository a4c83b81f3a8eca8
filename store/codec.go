// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compression names the payload codec used for newly stored messages.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionS2   Compression = "s2"
	CompressionZstd Compression = "zstd"
)

// codec identifiers persisted with each record.
const (
	codecNone byte = iota
	codecS2
	codecZstd
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("failed to create zstd encoder: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		panic("failed to create zstd decoder: " + err.Error())
	}
}

// ParseCompression parses a codec name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	c := Compression(name)
	if c == "" {
		c = CompressionNone
	}
	if _, err := c.codec(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Compression) codec() (byte, error) {
	switch c {
	case CompressionNone, "":
		return codecNone, nil
	case CompressionS2:
		return codecS2, nil
	case CompressionZstd:
		return codecZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, string(c))
	}
}

func compress(data []byte, codec byte) []byte {
	if len(data) == 0 {
		return data
	}
	switch codec {
	case codecS2:
		return s2.Encode(nil, data)
	case codecZstd:
		return zstdEncoder.EncodeAll(data, nil)
	default:
		return data
	}
}

func decompress(data []byte, codec byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	switch codec {
	case codecNone:
		return data, nil
	case codecS2:
		return s2.Decode(nil, data)
	case codecZstd:
		return zstdDecoder.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCompression, codec)
	}
}
