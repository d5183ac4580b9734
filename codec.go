package pivotal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
)

// formatVersion is the on-disk version shared by every blob this package writes.
const formatVersion = uint32(1)

// binaryWriter writes little-endian values and tracks the number of bytes
// written. The first error sticks; later writes become no-ops so callers can
// check once per section.
type binaryWriter struct {
	w   io.Writer
	n   int64
	err error
}

func newBinaryWriter(w io.Writer) *binaryWriter {
	return &binaryWriter{w: w}
}

// write encodes a fixed-size value or slice of fixed-size values.
func (bw *binaryWriter) write(data any) error {
	if bw.err != nil {
		return bw.err
	}
	if err := binary.Write(bw.w, binary.LittleEndian, data); err != nil {
		bw.err = err
		return err
	}
	bw.n += int64(binary.Size(data))
	return nil
}

func (bw *binaryWriter) writeBytes(b []byte) error {
	if bw.err != nil {
		return bw.err
	}
	n, err := bw.w.Write(b)
	bw.n += int64(n)
	if err != nil {
		bw.err = err
	}
	return err
}

// writeHeader writes a 4-byte magic number followed by the format version.
func (bw *binaryWriter) writeHeader(magic [4]byte) error {
	if err := bw.writeBytes(magic[:]); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}
	if err := bw.write(formatVersion); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	return nil
}

// writeString writes a uint32 length prefix followed by the raw bytes.
func (bw *binaryWriter) writeString(s string) error {
	if err := bw.write(uint32(len(s))); err != nil {
		return err
	}
	return bw.writeBytes([]byte(s))
}

// writeBitmap writes a length-prefixed roaring bitmap.
func (bw *binaryWriter) writeBitmap(bm *roaring.Bitmap) error {
	data, err := bm.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize bitmap: %w", err)
	}
	if err := bw.write(uint32(len(data))); err != nil {
		return err
	}
	return bw.writeBytes(data)
}

// sub accounts for bytes written by a nested WriterTo.
func (bw *binaryWriter) sub(wt io.WriterTo) error {
	if bw.err != nil {
		return bw.err
	}
	n, err := wt.WriteTo(bw.w)
	bw.n += n
	if err != nil {
		bw.err = err
	}
	return err
}

// binaryReader is the reading counterpart of binaryWriter.
type binaryReader struct {
	r   io.Reader
	n   int64
	err error
}

func newBinaryReader(r io.Reader) *binaryReader {
	return &binaryReader{r: r}
}

func (br *binaryReader) read(data any) error {
	if br.err != nil {
		return br.err
	}
	if err := binary.Read(br.r, binary.LittleEndian, data); err != nil {
		br.err = err
		return err
	}
	br.n += int64(binary.Size(data))
	return nil
}

func (br *binaryReader) readBytes(n int) ([]byte, error) {
	if br.err != nil {
		return nil, br.err
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(br.r, buf)
	br.n += int64(read)
	if err != nil {
		br.err = err
		return nil, err
	}
	return buf, nil
}

// readLimited reads exactly n bytes, growing the buffer as data arrives so a
// corrupt length prefix cannot force a large allocation up front.
func (br *binaryReader) readLimited(n int64) ([]byte, error) {
	if br.err != nil {
		return nil, br.err
	}
	var buf bytes.Buffer
	read, err := io.CopyN(&buf, br.r, n)
	br.n += read
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
		return nil, err
	}
	return buf.Bytes(), nil
}

// readHeader validates the magic number and format version.
func (br *binaryReader) readHeader(magic [4]byte) error {
	got, err := br.readBytes(4)
	if err != nil {
		return fmt.Errorf("failed to read magic number: %w", err)
	}
	if string(got) != string(magic[:]) {
		return fmt.Errorf("%w: expected '%s', got '%s'", ErrInvalidMagic, string(magic[:]), string(got))
	}
	var version uint32
	if err := br.read(&version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if version != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return nil
}

// maxStringLen bounds length prefixes of tags so corrupt input cannot force huge allocations.
const maxStringLen = 1 << 10

func (br *binaryReader) readString() (string, error) {
	var n uint32
	if err := br.read(&n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit %d", n, maxStringLen)
	}
	b, err := br.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (br *binaryReader) readBitmap() (*roaring.Bitmap, error) {
	var size uint32
	if err := br.read(&size); err != nil {
		return nil, fmt.Errorf("failed to read bitmap size: %w", err)
	}
	data, err := br.readLimited(int64(size))
	if err != nil {
		return nil, fmt.Errorf("failed to read bitmap data: %w", err)
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to deserialize bitmap: %w", err)
	}
	return bm, nil
}

// sub accounts for bytes consumed by a nested decoder.
func (br *binaryReader) sub(decode func(io.Reader) (int64, error)) error {
	if br.err != nil {
		return br.err
	}
	n, err := decode(br.r)
	br.n += n
	if err != nil {
		br.err = err
	}
	return err
}
