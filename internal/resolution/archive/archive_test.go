package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"bundleid/internal/records"
)

func TestCPIOReaderFormats(t *testing.T) {
	entries := []fileEntry{
		{name: ".", data: ""},
		{name: "./Applications/Figma.app/Contents/Info.plist", data: "abc"},
		{name: "./Applications/Figma.app/Contents/MacOS/Figma", data: "binary-data"},
	}
	for name, stream := range map[string][]byte{"odc": buildODC(entries), "newc": buildNewc(entries)} {
		t.Run(name, func(t *testing.T) {
			cr := newCPIOReader(bytes.NewReader(stream))
			var got []string
			for {
				entry, _, err := cr.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Next failed: %v", err)
				}
				got = append(got, entry)
				if entry == entries[1].name {
					data, err := io.ReadAll(cr)
					if err != nil {
						t.Fatalf("read entry: %v", err)
					}
					if string(data) != "abc" {
						t.Fatalf("unexpected data %q", data)
					}
				}
			}
			want := []string{entries[0].name, entries[1].name, entries[2].name}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("entries = %v, want %v", got, want)
			}
		})
	}
}

func TestCPIOReaderRejectsUnknownMagic(t *testing.T) {
	cr := newCPIOReader(bytes.NewReader([]byte("garbage-stream")))
	if _, _, err := cr.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected magic error, got %v", err)
	}
}

func TestInfoPlistDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		ok    bool
	}{
		{name: "./Applications/Figma.app/Contents/Info.plist", depth: 3, ok: true},
		{name: "Figma.app/Contents/Info.plist", depth: 2, ok: true},
		{name: "Figma.app/Contents/Frameworks/Helper.app/Contents/Info.plist", depth: 5, ok: true},
		{name: "__MACOSX/Figma.app/Contents/Info.plist", ok: false},
		{name: "Figma.app/Contents/Resources/Info.plist", ok: false},
		{name: "Info.plist", ok: false},
	}
	for _, tt := range tests {
		depth, ok := infoPlistDepth(tt.name)
		if ok != tt.ok || (ok && depth != tt.depth) {
			t.Errorf("infoPlistDepth(%q) = %d,%v want %d,%v", tt.name, depth, ok, tt.depth, tt.ok)
		}
	}
}

func TestMetadataParsing(t *testing.T) {
	pkgInfo := []byte(`<?xml version="1.0" encoding="utf-8"?>
<pkg-info overwrite-permissions="true" identifier="com.example.pkg" version="1.0"><bundle id="com.example.App"/></pkg-info>`)
	if got := packageInfoIdentifier(pkgInfo); got != "com.example.pkg" {
		t.Fatalf("packageInfoIdentifier = %q", got)
	}
	dist := []byte(`<?xml version="1.0" encoding="utf-8"?>
<installer-gui-script minSpecVersion="1">
  <script><![CDATA[function check() { return a < b; }]]></script>
  <pkg-ref id="com.example.main"/>
  <pkg-ref id="com.example.main"><bundle-version><bundle id="com.example.App"/></bundle-version></pkg-ref>
  <pkg-ref id="com.example.helper"/>
</installer-gui-script>`)
	want := []string{"com.example.main", "com.example.helper", "com.example.App"}
	if got := distributionCandidates(dist); !reflect.DeepEqual(got, want) {
		t.Fatalf("distributionCandidates = %v, want %v", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"https://example.com/Figma.pkg":            KindPackage,
		"https://example.com/Suite.MPKG?token=abc": KindPackage,
		"https://example.com/app.zip#frag":         KindZip,
		"https://example.com/app.tar.gz":           KindTarGz,
		"https://example.com/app.tgz":              KindTarGz,
		"https://example.com/app.dmg":              KindUnsupported,
		"ftp://example.com/app.pkg":                KindUnsupported,
		"":                                         KindUnsupported,
	}
	for raw, want := range tests {
		if got := Classify(raw); got != want {
			t.Errorf("Classify(%q) = %v, want %v", raw, got, want)
		}
	}
}

type servedArtifact struct {
	server *httptest.Server
	hits   atomic.Int32
}

func serveArtifact(t *testing.T, body []byte) *servedArtifact {
	t.Helper()
	served := &servedArtifact{}
	served.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(served.server.Close)
	return served
}

func newTestInspector(t *testing.T, maxBytes int64) (*Inspector, string) {
	t.Helper()
	workspace := t.TempDir()
	return New(Config{WorkspaceDir: workspace, MaxBytes: maxBytes, Timeout: 5 * time.Second}, nil), workspace
}

func assertWorkspaceEmpty(t *testing.T, workspace string) {
	t.Helper()
	entries, err := os.ReadDir(workspace)
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected empty workspace, found %v", names)
	}
}

func TestInspectorPackageInfoIdentifier(t *testing.T) {
	pkg := buildXar(t, []xarEntry{
		{path: "Distribution", data: []byte(`<installer-gui-script><pkg-ref id="com.example.dist"/></installer-gui-script>`), compressed: true},
		{path: "App.pkg/PackageInfo", data: []byte(`<pkg-info identifier="com.example.component"/>`), compressed: true},
		{path: "PackageInfo", data: []byte(`<pkg-info identifier="com.example.root"/>`)},
	})
	served := serveArtifact(t, pkg)
	inspector, workspace := newTestInspector(t, 1<<20)

	got, err := inspector.Resolve(context.Background(), records.Record{Name: "Example", ArtifactURL: served.server.URL + "/Example.pkg"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "com.example.root" {
		t.Fatalf("Resolve = %q, want root PackageInfo identifier", got)
	}
	assertWorkspaceEmpty(t, workspace)
}

func TestInspectorPayloadInfoPlist(t *testing.T) {
	payload := gzipBytes(t, buildODC([]fileEntry{
		{name: "./Applications/Figma.app/Contents/Frameworks/Helper.app/Contents/Info.plist", data: infoPlist("com.figma.Helper")},
		{name: "./Applications/Figma.app/Contents/Info.plist", data: infoPlist("com.figma.Desktop")},
	}))
	pkg := buildXar(t, []xarEntry{
		{path: "Distribution", data: []byte(`<installer-gui-script><pkg-ref id="com.figma.pkg"/></installer-gui-script>`)},
		{path: "Figma.pkg/PackageInfo", data: []byte(`<pkg-info format-version="2"/>`), compressed: true},
		{path: "Figma.pkg/Payload", data: payload},
	})
	served := serveArtifact(t, pkg)
	inspector, workspace := newTestInspector(t, 1<<20)

	got, err := inspector.Resolve(context.Background(), records.Record{Name: "Figma", ArtifactURL: served.server.URL + "/Figma.pkg"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "com.figma.Desktop" {
		t.Fatalf("Resolve = %q, want shallowest app bundle id", got)
	}
	assertWorkspaceEmpty(t, workspace)
}

func TestInspectorDistributionFallback(t *testing.T) {
	pkg := buildXar(t, []xarEntry{
		{path: "Distribution", data: []byte(`<installer-gui-script><pkg-ref id="not valid"/><bundle id="com.example.App"/></installer-gui-script>`), compressed: true},
		{path: "Example.pkg/Payload", data: []byte("pbzx-not-supported")},
	})
	served := serveArtifact(t, pkg)
	inspector, workspace := newTestInspector(t, 1<<20)

	got, err := inspector.Resolve(context.Background(), records.Record{ArtifactURL: served.server.URL + "/Example.pkg"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "com.example.App" {
		t.Fatalf("Resolve = %q", got)
	}
	assertWorkspaceEmpty(t, workspace)
}

func TestInspectorZipAndTarGz(t *testing.T) {
	entries := []fileEntry{
		{name: "Tool.app/Contents/Library/LoginItems/Agent.app/Contents/Info.plist", data: infoPlist("com.example.Agent")},
		{name: "Tool.app/Contents/Info.plist", data: infoPlist("com.example.Tool")},
	}
	for name, tc := range map[string]struct {
		body []byte
		path string
	}{
		"zip":    {body: buildZip(t, entries), path: "/Tool.zip"},
		"tar.gz": {body: buildTarGz(t, entries), path: "/Tool.tar.gz"},
	} {
		t.Run(name, func(t *testing.T) {
			served := serveArtifact(t, tc.body)
			inspector, workspace := newTestInspector(t, 1<<20)
			got, err := inspector.Resolve(context.Background(), records.Record{ArtifactURL: served.server.URL + tc.path})
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if got != "com.example.Tool" {
				t.Fatalf("Resolve = %q", got)
			}
			assertWorkspaceEmpty(t, workspace)
		})
	}
}

func TestInspectorCleansUpOnFailure(t *testing.T) {
	valid := buildXar(t, []xarEntry{{path: "PackageInfo", data: []byte(`<pkg-info identifier="com.example.root"/>`)}})
	tests := map[string]struct {
		body     []byte
		path     string
		maxBytes int64
	}{
		"corrupt header":   {body: []byte("xar!garbage"), path: "/broken.pkg", maxBytes: 1 << 20},
		"not a xar":        {body: []byte("<html>not found</html>"), path: "/broken.pkg", maxBytes: 1 << 20},
		"truncated pkg":    {body: valid[:len(valid)/2], path: "/partial.pkg", maxBytes: 1 << 20},
		"truncated zip":    {body: []byte("PK\x03\x04truncated"), path: "/broken.zip", maxBytes: 1 << 20},
		"corrupt tar.gz":   {body: []byte{0x1f, 0x8b, 0x08, 0x00}, path: "/broken.tgz", maxBytes: 1 << 20},
		"oversize payload": {body: bytes.Repeat([]byte("a"), 4096), path: "/big.pkg", maxBytes: 1024},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			served := serveArtifact(t, tc.body)
			inspector, workspace := newTestInspector(t, tc.maxBytes)
			got, err := inspector.Resolve(context.Background(), records.Record{ArtifactURL: served.server.URL + tc.path})
			if err == nil {
				t.Fatalf("expected error, got identifier %q", got)
			}
			if got != "" {
				t.Fatalf("expected no identifier, got %q", got)
			}
			assertWorkspaceEmpty(t, workspace)
		})
	}
}

func TestInspectorOversizeIsTooLarge(t *testing.T) {
	served := serveArtifact(t, bytes.Repeat([]byte("a"), 4096))
	inspector, workspace := newTestInspector(t, 1024)
	_, err := inspector.Resolve(context.Background(), records.Record{ArtifactURL: served.server.URL + "/big.zip"})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	assertWorkspaceEmpty(t, workspace)
}

func TestInspectorSkipsUnsupportedArtifacts(t *testing.T) {
	served := serveArtifact(t, []byte("ignored"))
	inspector, workspace := newTestInspector(t, 1<<20)
	for _, url := range []string{"", served.server.URL + "/App.dmg"} {
		got, err := inspector.Resolve(context.Background(), records.Record{ArtifactURL: url})
		if err != nil || got != "" {
			t.Fatalf("expected no result for %q, got %q, %v", url, got, err)
		}
	}
	if served.hits.Load() != 0 {
		t.Fatal("expected no download for unsupported artifacts")
	}
	assertWorkspaceEmpty(t, workspace)
}
