package pivotal

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Codec selects how SaveFile compresses its payload.
type Codec uint8

const (
	// CodecNone stores the payload as-is.
	CodecNone Codec = iota

	// CodecGzip compresses the payload with gzip.
	CodecGzip

	// CodecZstd compresses the payload with zstandard.
	// Pivot sequences and distance tables compress well; this is the usual choice.
	CodecZstd
)

// String returns the codec name used on the command line.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec is the inverse of Codec.String.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

var fileMagic = [4]byte{'P', 'V', 'T', 'L'}

// SaveFile writes parts, in order, to path.
//
// The file is written to a temporary sibling and renamed over path once
// every part has been written and synced, so readers never observe a
// partial file and a failed save leaves any previous file intact.
//
// File layout:
// 1. Magic number "PVTL" (4 bytes) + version (4 bytes)
// 2. Codec (1 byte)
// 3. The concatenated parts, compressed with the codec
//
// Example:
//
//	err := SaveFile("vectors.pvt", CodecZstd, db, Tagged[[]float32](idx))
func SaveFile(path string, codec Codec, parts ...io.WriterTo) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	bw := newBinaryWriter(buf)
	if err := bw.writeHeader(fileMagic); err != nil {
		return err
	}
	if err := bw.write(uint8(codec)); err != nil {
		return fmt.Errorf("failed to write codec: %w", err)
	}

	payload, err := compressor(buf, codec)
	if err != nil {
		return err
	}
	for i, part := range parts {
		if _, err := part.WriteTo(payload); err != nil {
			return fmt.Errorf("failed to write part %d: %w", i, err)
		}
	}
	if err := payload.Close(); err != nil {
		return fmt.Errorf("failed to finish %s stream: %w", codec, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	tmpName = ""
	return nil
}

// nopWriteCloser adds a no-op Close to an io.Writer.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressor(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown codec %d", uint8(codec))
	}
}

// File is a reader over the decoded payload of a file written by SaveFile.
type File struct {
	codec   Codec
	f       *os.File
	payload io.Reader
	closeFn func()
}

// OpenFile opens a file written by SaveFile. Reads return the concatenated
// parts in the order they were saved.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src := bufio.NewReaderSize(f, 256*1024)
	br := newBinaryReader(src)
	if err := br.readHeader(fileMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	var raw uint8
	if err := br.read(&raw); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read codec: %w", err)
	}

	file := &File{codec: Codec(raw), f: f, closeFn: func() {}}
	switch file.codec {
	case CodecNone:
		file.payload = src
	case CodecGzip:
		gz, err := gzip.NewReader(src)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		file.payload = gz
		file.closeFn = func() { _ = gz.Close() }
	case CodecZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		file.payload = dec
		file.closeFn = dec.Close
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unknown codec %d", raw)
	}
	return file, nil
}

// Codec returns the codec the file was written with.
func (f *File) Codec() Codec {
	return f.codec
}

func (f *File) Read(p []byte) (int, error) {
	return f.payload.Read(p)
}

// Close releases the decoder and the underlying file.
func (f *File) Close() error {
	f.closeFn()
	return f.f.Close()
}
