package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bundleid/internal/fileutil"
	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/plistinfo"
	"bundleid/internal/records"
	"bundleid/internal/services"
)

// StrategyName is the provenance tag for artifact inspection.
const StrategyName = "pkg_inspection"

// expansionFactor bounds decompressed reads relative to the download cap.
const expansionFactor = 8

// Config controls downloads and parsing.
type Config struct {
	WorkspaceDir string
	MaxBytes     int64
	Timeout      time.Duration
	PlistParser  string
	UserAgent    string
}

// Inspector downloads installer artifacts and reads the identifier from the
// metadata they carry.
type Inspector struct {
	cfg        Config
	parser     plistinfo.Parser
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithHTTPClient overrides the download client. The configured timeout still
// applies through the request context.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Inspector) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithParser overrides the plist parser selected from Config.PlistParser.
func WithParser(parser plistinfo.Parser) Option {
	return func(i *Inspector) {
		if parser != nil {
			i.parser = parser
		}
	}
}

// New builds an Inspector.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Inspector {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 512 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = "bundleid"
	}
	inspector := &Inspector{
		cfg:        cfg,
		parser:     plistinfo.New(cfg.PlistParser),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewComponentLogger(logger, "archive"),
	}
	for _, opt := range opts {
		opt(inspector)
	}
	return inspector
}

// Name returns the strategy name.
func (i *Inspector) Name() string { return StrategyName }

// Resolve downloads record.ArtifactURL into a fresh workspace directory and
// inspects it. Records without a supported artifact return no result. The
// workspace is removed on every return path.
func (i *Inspector) Resolve(ctx context.Context, record records.Record) (string, error) {
	kind := Classify(record.ArtifactURL)
	if kind == KindUnsupported {
		return "", nil
	}
	logger := logging.WithContext(ctx, i.logger)

	base := strings.TrimSpace(i.cfg.WorkspaceDir)
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "archive", "workspace", "create workspace root", err)
	}
	workspace, err := os.MkdirTemp(base, "artifact-*")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "archive", "workspace", "create workspace", err)
	}
	defer i.cleanup(logger, workspace)

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	artifact := filepath.Join(workspace, "artifact"+kind.extension())
	size, err := download(ctx, i.httpClient, i.cfg.UserAgent, record.ArtifactURL, artifact, i.cfg.MaxBytes)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "download", "artifact download failed", err)
	}
	logger.Debug("artifact downloaded",
		logging.String("artifact_kind", kind.String()),
		logging.Int64("size_bytes", size))

	var (
		value  string
		source string
	)
	switch kind {
	case KindPackage:
		value, source, err = i.inspectPackage(logger, artifact, workspace)
	case KindZip:
		value, source, err = i.inspectCandidate(scanZip(artifact))
	case KindTarGz:
		value, source, err = i.inspectCandidate(scanTarGz(artifact, i.cfg.MaxBytes*expansionFactor))
	}
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "archive", "inspect", "artifact inspection failed", err)
	}
	if value != "" {
		logger.Debug("identifier found in artifact",
			logging.String("identifier", value),
			logging.String("metadata_source", source))
	}
	return value, nil
}

func (i *Inspector) cleanup(logger *slog.Logger, workspace string) {
	if err := os.RemoveAll(workspace); err != nil {
		logging.WarnWithContext(logger, "failed to remove artifact workspace", "workspace_cleanup_failed",
			logging.Error(err),
			logging.String("workspace", workspace),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"))
	}
}

func (i *Inspector) inspectCandidate(candidate *plistCandidate, err error) (string, string, error) {
	if err != nil {
		return "", "", err
	}
	if candidate == nil {
		return "", "", nil
	}
	value, err := i.parser.BundleIdentifier(candidate.data)
	if err != nil || !identifier.Valid(value) {
		return "", "", nil
	}
	return value, candidate.name, nil
}

// inspectPackage checks, in order: PackageInfo identifier attributes, the
// shallowest app Info.plist in each Payload, then Distribution pkg-ref and
// bundle ids. Members are extracted into workspace before parsing.
func (i *Inspector) inspectPackage(logger *slog.Logger, artifact, workspace string) (string, string, error) {
	xa, err := openXar(artifact)
	if err != nil {
		return "", "", err
	}
	defer xa.Close()

	var packageInfos, payloads, distributions []xarMember
	for _, m := range xa.Members() {
		switch path.Base(m.Path) {
		case "PackageInfo":
			packageInfos = append(packageInfos, m)
		case "Payload":
			payloads = append(payloads, m)
		case "Distribution":
			distributions = append(distributions, m)
		}
	}
	sortRootFirst(packageInfos)
	sortRootFirst(payloads)
	sortRootFirst(distributions)

	extractDir := filepath.Join(workspace, "extracted")
	var extractErrs []error

	for _, m := range packageInfos {
		data, err := i.extractSmall(xa, m, extractDir)
		if err != nil {
			extractErrs = append(extractErrs, err)
			continue
		}
		if id := packageInfoIdentifier(data); identifier.Valid(id) {
			return id, m.Path, nil
		}
	}

	for _, m := range payloads {
		local, err := i.extract(xa, m, extractDir, i.cfg.MaxBytes*expansionFactor)
		if err != nil {
			extractErrs = append(extractErrs, err)
			continue
		}
		candidate, err := scanLocalPayload(local, i.cfg.MaxBytes*expansionFactor)
		if err != nil {
			logger.Debug("payload scan failed", logging.String("member", m.Path), logging.Error(err))
			extractErrs = append(extractErrs, err)
			continue
		}
		if value, source, _ := i.inspectCandidate(candidate, nil); value != "" {
			return value, m.Path + ":" + source, nil
		}
	}

	for _, m := range distributions {
		data, err := i.extractSmall(xa, m, extractDir)
		if err != nil {
			extractErrs = append(extractErrs, err)
			continue
		}
		for _, id := range distributionCandidates(data) {
			if identifier.Valid(id) {
				return id, m.Path, nil
			}
		}
	}

	if len(extractErrs) > 0 {
		return "", "", errors.Join(extractErrs...)
	}
	return "", "", nil
}

const maxMetadataBytes = 8 << 20

func (i *Inspector) extractSmall(xa *xarArchive, m xarMember, dir string) ([]byte, error) {
	local, err := i.extract(xa, m, dir, maxMetadataBytes)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(local)
}

// extract writes member m below dir and returns the local path.
func (i *Inspector) extract(xa *xarArchive, m xarMember, dir string, limit int64) (_ string, err error) {
	if m.Size > limit {
		return "", fmt.Errorf("%w: member %s is %d bytes", ErrTooLarge, m.Path, m.Size)
	}
	dest, err := fileutil.SafeJoin(dir, m.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}
	r, err := xa.Open(m)
	if err != nil {
		return "", err
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", m.Path, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	n, err := io.Copy(out, io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", m.Path, err)
	}
	if n > limit {
		return "", fmt.Errorf("%w: member %s", ErrTooLarge, m.Path)
	}
	return dest, nil
}

func scanLocalPayload(p string, limit int64) (*plistCandidate, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()
	return scanPayload(f, limit)
}

// sortRootFirst orders members by depth, then path.
func sortRootFirst(members []xarMember) {
	sort.SliceStable(members, func(a, b int) bool {
		da, db := strings.Count(members[a].Path, "/"), strings.Count(members[b].Path, "/")
		if da != db {
			return da < db
		}
		return members[a].Path < members[b].Path
	})
}
