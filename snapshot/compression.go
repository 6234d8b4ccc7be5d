package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the algorithm applied to the stored payload.
type Compression uint8

const (
	// None stores the payload as is.
	None Compression = 0
	// LZ4 uses LZ4 block compression.
	LZ4 Compression = 1
	// Zstd uses Zstandard.
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zstandard":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

// lz4 cannot expand data by more than this factor.
const lz4MaxRatio = 255

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

// zstdInitialBuffer caps the up-front allocation for a zstd payload.
const zstdInitialBuffer = 1 << 20

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxPayloadSize))
	return dec
}

// compress returns the stored form of raw and the algorithm actually used.
// Payloads that do not shrink are stored uncompressed.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, None, nil
	}

	var out []byte
	switch c {
	case None:
		return raw, None, nil
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, None, fmt.Errorf("lz4: %w", err)
		}
		out = buf[:n]
	case Zstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("unknown compression %d", c)
	}

	if len(out) == 0 || len(out) >= len(raw) {
		return raw, None, nil
	}
	return out, c, nil
}

// decompress reverses compress. rawLen comes from the header and is checked
// against the decoded length.
func decompress(stored []byte, c Compression, rawLen uint64) ([]byte, error) {
	switch c {
	case None:
		if uint64(len(stored)) != rawLen {
			return nil, fmt.Errorf("%w: stored %d bytes, raw length %d", ErrMalformed, len(stored), rawLen)
		}
		return stored, nil

	case LZ4:
		if rawLen > uint64(len(stored))*lz4MaxRatio+16 {
			return nil, fmt.Errorf("%w: raw length %d impossible for %d lz4 bytes", ErrMalformed, rawLen, len(stored))
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrMalformed, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: lz4 decoded %d bytes, want %d", ErrMalformed, n, rawLen)
		}
		return out, nil

	case Zstd:
		var h zstd.Header
		if err := h.Decode(stored); err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}
		if h.HasFCS && h.FrameContentSize != rawLen {
			return nil, fmt.Errorf("%w: zstd frame holds %d bytes, want %d", ErrMalformed, h.FrameContentSize, rawLen)
		}

		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		if err := dec.Reset(bytes.NewReader(stored)); err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}

		// Never decode more than rawLen+1 bytes, and grow the buffer only as
		// data arrives.
		buf := bytes.NewBuffer(make([]byte, 0, min(rawLen, zstdInitialBuffer)))
		n, err := io.Copy(buf, io.LimitReader(dec, int64(rawLen)+1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: zstd decoded at least %d bytes, want %d", ErrMalformed, n, rawLen)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrMalformed, c)
	}
}
