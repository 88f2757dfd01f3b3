package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ErrTooLarge is returned when an artifact exceeds the configured byte cap.
var ErrTooLarge = errors.New("artifact exceeds size limit")

// Kind is the artifact container type.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPackage
	KindZip
	KindTarGz
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "pkg"
	case KindZip:
		return "zip"
	case KindTarGz:
		return "tar.gz"
	default:
		return "unsupported"
	}
}

func (k Kind) extension() string {
	switch k {
	case KindPackage:
		return ".pkg"
	case KindZip:
		return ".zip"
	case KindTarGz:
		return ".tar.gz"
	default:
		return ""
	}
}

// Classify returns the artifact kind implied by the URL path. Query strings
// and fragments are ignored.
func Classify(rawURL string) Kind {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return KindUnsupported
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return KindUnsupported
	}
	p := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(p, ".pkg"), strings.HasSuffix(p, ".mpkg"):
		return KindPackage
	case strings.HasSuffix(p, ".zip"):
		return KindZip
	case strings.HasSuffix(p, ".tar.gz"), strings.HasSuffix(p, ".tgz"):
		return KindTarGz
	default:
		return KindUnsupported
	}
}

// download streams rawURL into dest, refusing anything larger than maxBytes.
// A partial file may remain on error; callers own the directory cleanup.
func download(ctx context.Context, client *http.Client, userAgent, rawURL, dest string, maxBytes int64) (_ int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading artifact %s: %w", redactURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("downloading artifact %s: unexpected status %d", redactURL(rawURL), resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return 0, fmt.Errorf("%w: content-length %d > %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("creating artifact file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return n, fmt.Errorf("writing artifact: %w", err)
	}
	if n > maxBytes {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return n, nil
}

// redactURL strips query parameters and fragments for safe logging.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
