package archive

import (
	"compress/bzip2"
	"compress/zlib"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const (
	xarMagic      = 0x78617221 // "xar!"
	xarHeaderSize = 28
	maxTOCBytes   = 16 << 20
)

// ErrNotXar marks inputs without a xar header.
var ErrNotXar = errors.New("not a xar archive")

type xarHeader struct {
	Magic           uint32
	HeaderSize      uint16
	Version         uint16
	TOCCompressed   uint64
	TOCUncompressed uint64
	ChecksumAlg     uint32
}

type xarTOC struct {
	Files []xarFile `xml:"toc>file"`
}

type xarFile struct {
	Name  string    `xml:"name"`
	Type  string    `xml:"type"`
	Data  *xarData  `xml:"data"`
	Files []xarFile `xml:"file"`
}

type xarData struct {
	Length   int64 `xml:"length"`
	Offset   int64 `xml:"offset"`
	Size     int64 `xml:"size"`
	Encoding struct {
		Style string `xml:"style,attr"`
	} `xml:"encoding"`
}

// xarMember is a regular file inside the archive heap.
type xarMember struct {
	Path     string
	Length   int64
	Offset   int64
	Size     int64
	Encoding string
}

type xarArchive struct {
	file      *os.File
	heapStart int64
	members   []xarMember
}

// openXar reads the header and table of contents of the flat package at p.
func openXar(p string) (*xarArchive, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	archive, err := readXar(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return archive, nil
}

func readXar(f *os.File) (*xarArchive, error) {
	var hdr xarHeader
	if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read xar header: %w", err)
	}
	if hdr.Magic != xarMagic {
		return nil, ErrNotXar
	}
	if hdr.HeaderSize < xarHeaderSize {
		return nil, fmt.Errorf("xar header size %d too small", hdr.HeaderSize)
	}
	if hdr.TOCCompressed == 0 || hdr.TOCCompressed > maxTOCBytes || hdr.TOCUncompressed > maxTOCBytes {
		return nil, fmt.Errorf("xar toc size out of range (%d/%d)", hdr.TOCCompressed, hdr.TOCUncompressed)
	}

	section := io.NewSectionReader(f, int64(hdr.HeaderSize), int64(hdr.TOCCompressed))
	zr, err := zlib.NewReader(section)
	if err != nil {
		return nil, fmt.Errorf("open xar toc: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxTOCBytes))
	if err != nil {
		return nil, fmt.Errorf("inflate xar toc: %w", err)
	}
	var toc xarTOC
	if err := xml.Unmarshal(raw, &toc); err != nil {
		return nil, fmt.Errorf("parse xar toc: %w", err)
	}

	archive := &xarArchive{
		file:      f,
		heapStart: int64(hdr.HeaderSize) + int64(hdr.TOCCompressed),
	}
	flattenXar(&archive.members, "", toc.Files)
	return archive, nil
}

func flattenXar(out *[]xarMember, prefix string, files []xarFile) {
	for _, f := range files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		full := path.Join(prefix, name)
		if f.Data != nil && (f.Type == "" || f.Type == "file") {
			*out = append(*out, xarMember{
				Path:     full,
				Length:   f.Data.Length,
				Offset:   f.Data.Offset,
				Size:     f.Data.Size,
				Encoding: strings.TrimSpace(f.Data.Encoding.Style),
			})
		}
		if len(f.Files) > 0 {
			flattenXar(out, full, f.Files)
		}
	}
}

func (a *xarArchive) Close() error {
	return a.file.Close()
}

// Members returns regular files in table-of-contents order.
func (a *xarArchive) Members() []xarMember {
	return a.members
}

// Open returns a decoded reader for member m.
func (a *xarArchive) Open(m xarMember) (io.Reader, error) {
	if m.Offset < 0 || m.Length < 0 {
		return nil, fmt.Errorf("xar member %s has negative extent", m.Path)
	}
	raw := io.NewSectionReader(a.file, a.heapStart+m.Offset, m.Length)
	switch m.Encoding {
	case "", "application/octet-stream":
		return raw, nil
	case "application/x-gzip", "application/zlib":
		zr, err := zlib.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("open xar member %s: %w", m.Path, err)
		}
		return zr, nil
	case "application/x-bzip2":
		return bzip2.NewReader(raw), nil
	default:
		return nil, fmt.Errorf("xar member %s: unsupported encoding %q", m.Path, m.Encoding)
	}
}
