package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	hfBaseURL = "https://huggingface.co"

	// LockFileName records the revision and checksum of each fetched
	// artifact next to the artifacts themselves.
	LockFileName = "fetch.lock.json"
)

// FetchOptions configure downloading one model's artifact set from a
// Hugging Face repository.
type FetchOptions struct {
	Repo     string
	Revision string // defaults to "main"
	OutDir   string
	HFToken  string
	BaseURL  string // defaults to huggingface.co; tests point it elsewhere
	Stdout   io.Writer
	Stderr   io.Writer
}

// ErrAccessDenied reports a 401/403 from the upstream repository.
type ErrAccessDenied struct {
	Repo string
	Msg  string
}

func (e *ErrAccessDenied) Error() string {
	if e.Msg != "" {
		return e.Msg
	}

	return fmt.Sprintf("access denied for %s", e.Repo)
}

// lockRecord pins one artifact to the revision and checksum it was fetched
// at; lockManifest is the on-disk collection of them.
type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

type lockManifest struct {
	Repo      string                `json:"repo"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// fetcher carries the per-Fetch state: the HTTP client, the lock manifest
// being rebuilt, and the destination directory.
type fetcher struct {
	base     string
	token    string
	client   *http.Client
	repo     string
	revision string
	outDir   string
	lock     lockManifest
	stdout   io.Writer
}

// Fetch downloads the four fixed artifacts of one model into OutDir. Files
// whose checksum already matches are skipped. Checksums come from the lock
// manifest when the revision matches, otherwise from upstream HEAD metadata;
// every download is verified against the expected checksum before the lock
// is updated.
func Fetch(opts FetchOptions) error {
	switch {
	case opts.Repo == "":
		return fmt.Errorf("repo is required")
	case opts.OutDir == "":
		return fmt.Errorf("out dir is required")
	}

	if opts.Revision == "" {
		opts.Revision = "main"
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.BaseURL == "" {
		opts.BaseURL = hfBaseURL
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, LockFileName)

	f := &fetcher{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.HFToken,
		client:   &http.Client{}, // no timeout: model files are large and slow links are fine
		repo:     opts.Repo,
		revision: opts.Revision,
		outDir:   opts.OutDir,
		lock:     readLockManifest(lockPath),
		stdout:   opts.Stdout,
	}
	f.lock.Repo = opts.Repo
	f.lock.Generated = time.Now().UTC().Format(time.RFC3339)

	for _, name := range ArtifactNames() {
		if err := f.fetchArtifact(name); err != nil {
			return err
		}
	}

	if err := writeLockManifest(lockPath, f.lock); err != nil {
		return err
	}

	fmt.Fprintf(f.stdout, "wrote lock manifest: %s\n", lockPath)

	return nil
}

// fetchArtifact brings one artifact up to date: resolve the expected
// checksum, skip if the local file already matches, otherwise download and
// verify before recording the result in the lock.
func (f *fetcher) fetchArtifact(name string) error {
	expected, err := f.expectedChecksum(name)
	if err != nil {
		return err
	}

	localPath := filepath.Join(f.outDir, name)

	switch ok, err := existingMatches(localPath, expected); {
	case err != nil:
		return err
	case ok:
		fmt.Fprintf(f.stdout, "skip %s (checksum match)\n", name)
		f.lock.Files[name] = lockRecord{Revision: f.revision, SHA256: expected}
		return nil
	}

	fmt.Fprintf(f.stdout, "fetch %s@%s -> %s\n", name, f.revision, localPath)

	actual, err := f.download(name, localPath)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s: expected %s got %s", name, expected, actual)
	}

	fmt.Fprintf(f.stdout, "verified %s (sha256=%s)\n", name, actual)
	f.lock.Files[name] = lockRecord{Revision: f.revision, SHA256: expected}

	return nil
}

// expectedChecksum reuses the lock manifest when it covers this revision,
// otherwise asks upstream. Hugging Face exposes the blob sha256 through the
// ETag family of headers on resolve URLs.
func (f *fetcher) expectedChecksum(name string) (string, error) {
	if lr, ok := f.lock.Files[name]; ok && lr.Revision == f.revision && isSHA256Hex(lr.SHA256) {
		return strings.ToLower(lr.SHA256), nil
	}

	resp, err := f.do(http.MethodHead, name)
	if err != nil {
		return "", fmt.Errorf("metadata request failed for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := f.checkStatus(resp, name, 399); err != nil {
		return "", err
	}

	for _, key := range []string{"X-Linked-Etag", "X-Repo-Commit", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", fmt.Errorf("unable to resolve sha256 metadata for %s", name)
}

// download streams one artifact to a temp file, hashing as it writes, and
// renames it into place. Returns the sha256 of the downloaded bytes.
func (f *fetcher) download(name, outPath string) (string, error) {
	resp, err := f.do(http.MethodGet, name)
	if err != nil {
		return "", fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := f.checkStatus(resp, name, 299); err != nil {
		return "", err
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	body := io.TeeReader(resp.Body, h)

	if _, err := io.Copy(io.MultiWriter(fh, &progressWriter{total: resp.ContentLength, out: f.stdout}), body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("fetch read failed: %w", err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func (f *fetcher) do(method, filename string) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", f.base, f.repo, f.revision, filename)

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	return f.client.Do(req)
}

// checkStatus maps 401/403 to ErrAccessDenied and anything above maxOK to a
// generic fetch failure.
func (f *fetcher) checkStatus(resp *http.Response, filename string, maxOK int) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &ErrAccessDenied{
			Repo: f.repo,
			Msg:  fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", f.repo),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > maxOK {
		return fmt.Errorf("fetch failed for %s: %s", filename, resp.Status)
	}

	return nil
}

// progressWriter prints a throttled progress line as bytes flow through it.
type progressWriter struct {
	total     int64
	written   int64
	lastPrint time.Time
	out       io.Writer
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	if time.Since(p.lastPrint) > 700*time.Millisecond {
		if p.total > 0 {
			pct := float64(p.written) * 100 / float64(p.total)
			fmt.Fprintf(p.out, "  progress: %.1f%% (%d/%d bytes)\n", pct, p.written, p.total)
		} else {
			fmt.Fprintf(p.out, "  progress: %d bytes\n", p.written)
		}
		p.lastPrint = time.Now()
	}

	return len(b), nil
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}

	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}

	return actual == expected, nil
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"")
	v = strings.TrimPrefix(v, "W/")

	return strings.Trim(v, "\"")
}

func isSHA256Hex(v string) bool { return shaHexPattern.MatchString(v) }

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// readLockManifest is lenient: a missing or corrupt lock only means no
// checksums can be reused.
func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}

	var parsed lockManifest
	if err := json.Unmarshal(b, &parsed); err != nil {
		return out
	}
	if parsed.Files == nil {
		parsed.Files = map[string]lockRecord{}
	}

	return parsed
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}

	return nil
}
