package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	odcMagic      = "070707"
	newcMagic     = "070701"
	newcCRCMagic  = "070702"
	odcHeaderLen  = 76
	newcHeaderLen = 110
	cpioTrailer   = "TRAILER!!!"
	maxCPIOName   = 4096
)

// cpioReader walks portable-ASCII (odc) and SVR4 (newc) cpio streams, the
// formats found in installer Payload files.
type cpioReader struct {
	r         *bufio.Reader
	remaining int64
	padding   int64
}

func newCPIOReader(r io.Reader) *cpioReader {
	return &cpioReader{r: bufio.NewReader(r)}
}

// Next advances to the next entry and returns its name and size. It returns
// io.EOF at the trailer.
func (c *cpioReader) Next() (string, int64, error) {
	if c.remaining+c.padding > 0 {
		if _, err := io.CopyN(io.Discard, c.r, c.remaining+c.padding); err != nil {
			return "", 0, fmt.Errorf("skip cpio entry: %w", err)
		}
		c.remaining, c.padding = 0, 0
	}

	magic, err := c.r.Peek(6)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", 0, io.EOF
		}
		return "", 0, fmt.Errorf("read cpio magic: %w", err)
	}
	var (
		name string
		size int64
	)
	switch string(magic) {
	case odcMagic:
		name, size, err = c.readODC()
	case newcMagic, newcCRCMagic:
		name, size, err = c.readNewc()
	default:
		return "", 0, fmt.Errorf("unsupported cpio magic %q", magic)
	}
	if err != nil {
		return "", 0, err
	}
	if name == cpioTrailer {
		return "", 0, io.EOF
	}
	return name, size, nil
}

func (c *cpioReader) readODC() (string, int64, error) {
	hdr := make([]byte, odcHeaderLen)
	if _, err := io.ReadFull(c.r, hdr); err != nil {
		return "", 0, fmt.Errorf("read odc header: %w", err)
	}
	nameSize, err := parseCPIOField(hdr[59:65], 8)
	if err != nil {
		return "", 0, err
	}
	fileSize, err := parseCPIOField(hdr[65:76], 8)
	if err != nil {
		return "", 0, err
	}
	name, err := c.readName(nameSize, 0)
	if err != nil {
		return "", 0, err
	}
	c.remaining = fileSize
	return name, fileSize, nil
}

func (c *cpioReader) readNewc() (string, int64, error) {
	hdr := make([]byte, newcHeaderLen)
	if _, err := io.ReadFull(c.r, hdr); err != nil {
		return "", 0, fmt.Errorf("read newc header: %w", err)
	}
	fileSize, err := parseCPIOField(hdr[54:62], 16)
	if err != nil {
		return "", 0, err
	}
	nameSize, err := parseCPIOField(hdr[94:102], 16)
	if err != nil {
		return "", 0, err
	}
	name, err := c.readName(nameSize, pad4(newcHeaderLen+nameSize))
	if err != nil {
		return "", 0, err
	}
	c.remaining = fileSize
	c.padding = pad4(fileSize)
	return name, fileSize, nil
}

func (c *cpioReader) readName(size, padding int64) (string, error) {
	if size <= 0 || size > maxCPIOName {
		return "", fmt.Errorf("cpio name size %d out of range", size)
	}
	buf := make([]byte, size+padding)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return "", fmt.Errorf("read cpio name: %w", err)
	}
	return string(bytes.TrimRight(buf[:size], "\x00")), nil
}

// Read reads the current entry's data.
func (c *cpioReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if errors.Is(err, io.EOF) && c.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func parseCPIOField(field []byte, base int) (int64, error) {
	value, err := strconv.ParseInt(string(field), base, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid cpio header field %q", field)
	}
	return value, nil
}

func pad4(n int64) int64 {
	return (4 - n%4) % 4
}
