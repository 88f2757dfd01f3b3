package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"
)

const maxInfoPlistBytes = 4 << 20

var infoPlistPath = regexp.MustCompile(`(^|/)[^/]+\.app/Contents/Info\.plist$`)

// ErrUnsupportedPayload marks payload encodings this package cannot read.
var ErrUnsupportedPayload = errors.New("unsupported payload encoding")

// infoPlistDepth reports whether name is an app bundle's Info.plist and how
// deep it sits. Resource forks and macOS metadata folders are ignored.
func infoPlistDepth(name string) (int, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(name, "./")), "/")
	if strings.HasPrefix(clean, "__MACOSX/") || !infoPlistPath.MatchString(clean) {
		return 0, false
	}
	return strings.Count(clean, "/"), true
}

// plistCandidate is the shallowest Info.plist seen so far.
type plistCandidate struct {
	name  string
	depth int
	data  []byte
}

func (c *plistCandidate) offer(name string, depth int, r io.Reader) error {
	if c.data != nil && depth >= c.depth {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInfoPlistBytes+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxInfoPlistBytes {
		return nil
	}
	c.name, c.depth, c.data = name, depth, data
	return nil
}

// scanPayload finds the shallowest app Info.plist inside an installer payload
// (gzip, bzip2 or uncompressed cpio). Reads are bounded by limit bytes of
// decompressed data.
func scanPayload(r io.Reader, limit int64) (*plistCandidate, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(6)
	if err != nil {
		return nil, fmt.Errorf("read payload magic: %w", err)
	}
	var stream io.Reader
	switch {
	case magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open payload gzip: %w", err)
		}
		defer gz.Close()
		stream = gz
	case bytes.HasPrefix(magic, []byte("BZh")):
		stream = bzip2.NewReader(br)
	case bytes.HasPrefix(magic, []byte("pbzx")):
		return nil, fmt.Errorf("%w: pbzx", ErrUnsupportedPayload)
	case string(magic) == odcMagic || string(magic) == newcMagic || string(magic) == newcCRCMagic:
		stream = br
	default:
		return nil, fmt.Errorf("%w: magic %x", ErrUnsupportedPayload, magic)
	}

	cr := newCPIOReader(io.LimitReader(stream, limit))
	best := &plistCandidate{}
	for {
		name, _, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if best.data != nil {
				return best, nil
			}
			return nil, err
		}
		if depth, ok := infoPlistDepth(name); ok {
			if err := best.offer(name, depth, cr); err != nil {
				return nil, err
			}
		}
	}
	if best.data == nil {
		return nil, nil
	}
	return best, nil
}

// scanZip finds the shallowest app Info.plist inside a zip archive.
func scanZip(p string) (*plistCandidate, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	best := &plistCandidate{}
	for _, f := range zr.File {
		depth, ok := infoPlistDepth(f.Name)
		if !ok || (best.data != nil && depth >= best.depth) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		err = best.offer(f.Name, depth, rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
	}
	if best.data == nil {
		return nil, nil
	}
	return best, nil
}

// scanTarGz finds the shallowest app Info.plist inside a gzip-compressed tar.
func scanTarGz(p string, limit int64) (*plistCandidate, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(io.LimitReader(gz, limit))
	best := &plistCandidate{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		if depth, ok := infoPlistDepth(hdr.Name); ok {
			if err := best.offer(hdr.Name, depth, tr); err != nil {
				return nil, err
			}
		}
	}
	if best.data == nil {
		return nil, nil
	}
	return best, nil
}
