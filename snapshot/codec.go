package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hupe1980/volfs/internal/hash"
)

const (
	magic      = 0x464C4F56 // "VOLF"
	version    = 1
	headerSize = 32

	// maxPayloadSize bounds the raw payload: a 4 GiB arena plus metadata.
	maxPayloadSize = 1<<32 + 1<<24

	// zeroTime marks a zero time.Time, whose UnixNano is undefined.
	zeroTime = math.MinInt64
)

// Minimum encoded sizes, used to reject impossible counts before allocating.
const (
	minStringSize = 2
	minFileSize   = minStringSize + 8 + 4 + 8 + minStringSize + 4
	minDirSize    = minStringSize + 4
)

type encodeOptions struct {
	compression Compression
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeOptions)

// WithCompression selects the payload compression. The default is Zstd.
func WithCompression(c Compression) EncodeOption {
	return func(o *encodeOptions) {
		o.compression = c
	}
}

// Encode writes img to w.
func Encode(w io.Writer, img *Image, optFns ...EncodeOption) error {
	opts := encodeOptions{compression: Zstd}
	for _, fn := range optFns {
		fn(&opts)
	}

	raw, err := encodePayload(img)
	if err != nil {
		return err
	}

	stored, used, err := compress(raw, opts.compression)
	if err != nil {
		return err
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	header[8] = byte(used)
	binary.LittleEndian.PutUint32(header[12:16], hash.CRC32C(raw))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(raw)))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(stored)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(stored); err != nil {
		return err
	}
	return nil
}

// Marshal returns the encoded form of img.
func Marshal(img *Image, optFns ...EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, optFns...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePayload(img *Image) ([]byte, error) {
	size := 64 + len(img.Arena) + len(img.Users)*16
	for _, d := range img.Directories {
		size += minDirSize + len(d.Name) + len(d.Files)*(minFileSize+32)
	}
	pb := newPayloadBuffer(make([]byte, 0, size))

	pb.writeInt("block size", img.Header.BlockSize)
	pb.writeInt("total blocks", img.Header.TotalBlocks)
	pb.writeInt("free blocks", img.Header.FreeBlocks)
	pb.writeInt("high-water", img.Header.HighWater)
	pb.writeBytes(img.Arena)

	pb.writeCount("user", len(img.Users))
	for _, u := range img.Users {
		pb.writeString(u)
	}

	pb.writeCount("directory", len(img.Directories))
	for _, d := range img.Directories {
		pb.writeString(d.Name)
		pb.writeCount("file", len(d.Files))
		for _, f := range d.Files {
			pb.writeString(f.Name)
			if f.Size < 0 {
				pb.fail("file %q has negative size %d", f.Name, f.Size)
			}
			pb.writeUint64(uint64(f.Size))
			pb.writeInt("start block", f.StartBlock)
			pb.writeUint64(uint64(encodeTime(f.CreatedAt)))
			pb.writeString(f.Owner)
			pb.writeCount("allowed user", len(f.AllowedUsers))
			for _, u := range f.AllowedUsers {
				pb.writeString(u)
			}
		}
	}

	if pb.err != nil {
		return nil, pb.err
	}
	if uint64(len(pb.buf)) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformed, len(pb.buf), int64(maxPayloadSize))
	}
	return pb.buf, nil
}

// Decode reads an image from r.
func Decode(r io.Reader) (*Image, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: header: %v", ErrTruncated, err)
		}
		return nil, err
	}

	if m := binary.LittleEndian.Uint32(header[0:4]); m != magic {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidMagic, m)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	c := Compression(header[8])
	checksum := binary.LittleEndian.Uint32(header[12:16])
	rawLen := binary.LittleEndian.Uint64(header[16:24])
	storedLen := binary.LittleEndian.Uint64(header[24:32])

	if rawLen > maxPayloadSize || storedLen > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload lengths %d/%d exceed %d", ErrMalformed, rawLen, storedLen, int64(maxPayloadSize))
	}

	// Read through a LimitReader so a lying header cannot force a large allocation.
	stored, err := io.ReadAll(io.LimitReader(r, int64(storedLen)))
	if err != nil {
		return nil, err
	}
	if uint64(len(stored)) != storedLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(stored), storedLen)
	}

	raw, err := decompress(stored, c, rawLen)
	if err != nil {
		return nil, err
	}
	if !hash.Verify(raw, checksum) {
		return nil, ErrChecksumMismatch
	}
	return decodePayload(raw)
}

// Unmarshal decodes an image from data.
func Unmarshal(data []byte) (*Image, error) {
	return Decode(bytes.NewReader(data))
}

func decodePayload(raw []byte) (*Image, error) {
	pb := newPayloadBuffer(raw)
	img := &Image{}

	img.Header.BlockSize = pb.readInt()
	img.Header.TotalBlocks = pb.readInt()
	img.Header.FreeBlocks = pb.readInt()
	img.Header.HighWater = pb.readInt()
	img.Arena = pb.readBytes()

	if n := pb.readCount("user", minStringSize); n > 0 {
		img.Users = make([]string, n)
		for i := range img.Users {
			img.Users[i] = pb.readString()
		}
	}

	if n := pb.readCount("directory", minDirSize); n > 0 {
		img.Directories = make([]Directory, n)
		for i := range img.Directories {
			d := &img.Directories[i]
			d.Name = pb.readString()
			if n := pb.readCount("file", minFileSize); n > 0 {
				d.Files = make([]File, n)
				for j := range d.Files {
					decodeFile(pb, &d.Files[j])
				}
			}
		}
	}

	if pb.err != nil {
		return nil, pb.err
	}
	if pb.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, pb.remaining())
	}
	return img, nil
}

func decodeFile(pb *payloadBuffer, f *File) {
	f.Name = pb.readString()
	size := pb.readUint64()
	if size > math.MaxInt64 {
		pb.fail("file %q size %d out of range", f.Name, size)
	}
	f.Size = int64(size)
	f.StartBlock = pb.readInt()
	f.CreatedAt = decodeTime(int64(pb.readUint64()))
	f.Owner = pb.readString()
	if n := pb.readCount("allowed user", minStringSize); n > 0 {
		f.AllowedUsers = make([]string, n)
		for i := range f.AllowedUsers {
			f.AllowedUsers[i] = pb.readString()
		}
	}
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return zeroTime
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == zeroTime {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
