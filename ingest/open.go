package ingest

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// Compression is the container format of an input file.
type Compression byte

const (
	Uncompressed Compression = iota
	Gzip
	Zip
	XZ
	Zlib
	BZip2
)

var signatures = map[Compression][]byte{
	Gzip:  {0x1f, 0x8b, 0x08},
	Zip:   {0x50, 0x4b, 0x03, 0x04},
	XZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	Zlib:  {0x78, 0x9c},
	BZip2: {0x42, 0x5a, 0x68},
}

// DetectCompression checks the leading bytes against known signatures.
func DetectCompression(header []byte) Compression {
	for c, sig := range signatures {
		if bytes.HasPrefix(header, sig) {
			return c
		}
	}
	return Uncompressed
}

// ExpandHome expands a leading ~/ to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", pfx.Err(err)
	}
	return filepath.Join(usr.HomeDir, path[2:]), nil
}

// Open opens a measurement export, transparently decompressing it. Zip
// archives yield their first entry.
func Open(path string) (io.ReadCloser, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	r, err := decompress(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	return &readCloser{Reader: r, file: f}, nil
}

func decompress(f io.Reader) (io.Reader, error) {
	br := bufio.NewReader(f)

	// Short files are fine: Peek returns what it has along with io.EOF.
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch DetectCompression(header) {
	case Gzip:
		return gzip.NewReader(br)
	case Zip:
		zr := zipstream.NewReader(br)
		if _, err := zr.Next(); err != nil {
			return nil, err
		}
		return zr, nil
	case XZ:
		return xz.NewReader(br, 0)
	case Zlib:
		return zlib.NewReader(br)
	case BZip2:
		return bzip2.NewReader(br), nil
	}

	return br, nil
}

// readCloser closes the decompressor, when it has a Close method, and then
// the underlying file.
type readCloser struct {
	io.Reader
	file io.Closer
}

func (c *readCloser) Close() error {
	var err error
	if rc, ok := c.Reader.(io.Closer); ok {
		err = rc.Close()
	}
	if ferr := c.file.Close(); err == nil {
		err = ferr
	}
	return err
}
