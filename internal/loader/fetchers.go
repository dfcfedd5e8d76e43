package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxBodyBytes caps a single scorelog body.
const maxBodyBytes = 64 << 20

// ErrOutsideRoot rejects source ids that escape the served directory.
var ErrOutsideRoot = errors.New("source outside data directory")

// DirFetcher reads sources as files relative to Root.
type DirFetcher struct {
	Root string
}

// Fetch reads Root/sourceID.
func (f DirFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Clean(filepath.FromSlash(sourceID))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, &LoadError{SourceID: sourceID, Cause: ErrOutsideRoot}
	}

	data, err := os.ReadFile(filepath.Join(f.Root, rel))
	if err != nil {
		return nil, &LoadError{SourceID: sourceID, Cause: err}
	}
	return data, nil
}

// HTTPFetcher GETs BaseURL/sourceID.
type HTTPFetcher struct {
	BaseURL    string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves the source. Any non-2xx status is a LoadError carrying
// the status code.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	url := f.BaseURL + "/" + strings.TrimLeft(sourceID, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{SourceID: sourceID, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &LoadError{SourceID: sourceID, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &LoadError{SourceID: sourceID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &LoadError{SourceID: sourceID, Cause: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}
