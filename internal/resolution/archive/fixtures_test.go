package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
)

type fileEntry struct {
	name string
	data string
}

func infoPlist(id string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>` + id + `</string>
</dict>
</plist>
`
}

func buildODC(entries []fileEntry) []byte {
	var buf bytes.Buffer
	write := func(name, data string, mode int) {
		fmt.Fprintf(&buf, "%s%06o%06o%06o%06o%06o%06o%06o%011o%06o%011o",
			odcMagic, 0, 0, mode, 0, 0, 1, 0, 0, len(name)+1, len(data))
		buf.WriteString(name)
		buf.WriteByte(0)
		buf.WriteString(data)
	}
	for _, e := range entries {
		write(e.name, e.data, 0o100644)
	}
	write(cpioTrailer, "", 0)
	return buf.Bytes()
}

func buildNewc(entries []fileEntry) []byte {
	var buf bytes.Buffer
	write := func(name, data string, mode int) {
		fmt.Fprintf(&buf, "%s%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x",
			newcMagic, 0, mode, 0, 0, 1, 0, len(data), 0, 0, 0, 0, len(name)+1, 0)
		buf.WriteString(name)
		buf.WriteByte(0)
		buf.Write(make([]byte, pad4(int64(newcHeaderLen+len(name)+1))))
		buf.WriteString(data)
		buf.Write(make([]byte, pad4(int64(len(data)))))
	}
	for _, e := range entries {
		write(e.name, e.data, 0o100644)
	}
	write(cpioTrailer, "", 0)
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type xarEntry struct {
	path       string
	data       []byte
	compressed bool
}

// buildXar assembles a flat package. Paths may contain one directory level,
// as component packages do ("App.pkg/Payload").
func buildXar(t *testing.T, entries []xarEntry) []byte {
	t.Helper()
	var heap bytes.Buffer
	fileXML := func(id int, name string, e xarEntry) string {
		stored := e.data
		encoding := "application/octet-stream"
		if e.compressed {
			stored = zlibBytes(t, e.data)
			encoding = "application/x-gzip"
		}
		offset := heap.Len()
		heap.Write(stored)
		return fmt.Sprintf(`<file id="%d"><name>%s</name><type>file</type><data><length>%d</length><offset>%d</offset><size>%d</size><encoding style="%s"/></data></file>`,
			id, name, len(stored), offset, len(e.data), encoding)
	}

	var toc strings.Builder
	toc.WriteString(`<?xml version="1.0" encoding="UTF-8"?><xar><toc>`)
	dirs := map[string][]string{}
	var dirOrder []string
	id := 1
	for _, e := range entries {
		dir, name, nested := strings.Cut(e.path, "/")
		if !nested {
			toc.WriteString(fileXML(id, e.path, e))
			id++
			continue
		}
		if _, ok := dirs[dir]; !ok {
			dirOrder = append(dirOrder, dir)
		}
		dirs[dir] = append(dirs[dir], fileXML(id, name, e))
		id++
	}
	for _, dir := range dirOrder {
		fmt.Fprintf(&toc, `<file id="%d"><name>%s</name><type>directory</type>%s</file>`, id, dir, strings.Join(dirs[dir], ""))
		id++
	}
	toc.WriteString(`</toc></xar>`)

	compressedTOC := zlibBytes(t, []byte(toc.String()))
	var out bytes.Buffer
	hdr := xarHeader{
		Magic:           xarMagic,
		HeaderSize:      xarHeaderSize,
		Version:         1,
		TOCCompressed:   uint64(len(compressedTOC)),
		TOCUncompressed: uint64(toc.Len()),
		ChecksumAlg:     0,
	}
	if err := binary.Write(&out, binary.BigEndian, hdr); err != nil {
		t.Fatal(err)
	}
	out.Write(compressedTOC)
	out.Write(heap.Bytes())
	return out.Bytes()
}

func buildZip(t *testing.T, entries []fileEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries []fileEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return gzipBytes(t, buf.Bytes())
}
