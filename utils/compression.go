package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = "none"
	CompressionGzip   CompressionAlgorithm = "gzip"
	CompressionBrotli CompressionAlgorithm = "br"
)

// compressionHeader prefixes payloads written by CompressTagged so readers can
// tell the algorithm without out-of-band metadata.
var compressionHeader = map[CompressionAlgorithm]byte{
	CompressionNone:   'n',
	CompressionGzip:   'g',
	CompressionBrotli: 'b',
}

// CompressData compresses data using the specified algorithm
func CompressData(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch algorithm {
	case CompressionNone:
		return data, nil

	case CompressionGzip:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionBrotli:
		var buf bytes.Buffer
		writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close brotli writer: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// DecompressData decompresses data using the specified algorithm
func DecompressData(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
		}
		return data, nil

	case CompressionBrotli:
		data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed)))
		if err != nil {
			return nil, fmt.Errorf("failed to read from brotli reader: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// GetBestCompression picks brotli for anything worth compressing.
func GetBestCompression(data []byte) CompressionAlgorithm {
	if len(data) < 512 {
		return CompressionNone
	}
	return CompressionBrotli
}

// CompressTagged compresses data with the best algorithm and prefixes a
// one-byte algorithm tag.
func CompressTagged(data []byte) ([]byte, error) {
	algorithm := GetBestCompression(data)
	compressed, err := CompressData(data, algorithm)
	if err != nil {
		return nil, err
	}
	return append([]byte{compressionHeader[algorithm]}, compressed...), nil
}

// DecompressTagged reverses CompressTagged.
func DecompressTagged(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty compressed payload")
	}
	for algorithm, tag := range compressionHeader {
		if payload[0] == tag {
			return DecompressData(payload[1:], algorithm)
		}
	}
	return nil, fmt.Errorf("unknown compression tag %q", payload[0])
}
