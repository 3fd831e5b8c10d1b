package storage

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codecs returns the shared zstd encoder and decoder. EncodeAll and DecodeAll are safe for
// concurrent use.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// encodeBody compresses data when compress is set and returns the encoding used.
func encodeBody(data []byte, compress bool) ([]byte, string, error) {
	if data == nil {
		data = []byte{}
	}
	if !compress {
		return data, encodingIdentity, nil
	}
	enc, _, err := codecs()
	if err != nil {
		return nil, "", fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), encodingZstd, nil
}

// decodeBody reverses encodeBody.
func decodeBody(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingIdentity:
		return data, nil
	case encodingZstd:
		_, dec, err := codecs()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
