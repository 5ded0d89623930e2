package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTP downloads images from absolute URLs or from paths under a base URL.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns a store resolving relative refs against baseURL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the first candidate that exists. A 404 or 410 moves on to
// the next candidate. Other client errors and oversized images fail with
// ErrInvalidRef; server errors and transport failures abort.
func (h *HTTP) Fetch(ctx context.Context, identity model.Identity) ([]byte, error) {
	for _, ref := range candidates(identity) {
		target, err := h.resolve(ref)
		if err != nil {
			return nil, err
		}
		data, found, err := h.get(ctx, target)
		if err != nil {
			return nil, err
		}
		if found {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, identity.ID)
}

func (h *HTTP) resolve(ref string) (string, error) {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref, nil
	}
	if h.baseURL == "" {
		return "", fmt.Errorf("%w: relative image ref %q without a base url", ErrInvalidRef, ref)
	}
	return h.baseURL + "/" + url.PathEscape(ref), nil
}

func (h *HTTP) get(ctx context.Context, target string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("download %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
	case code == http.StatusNotFound, code == http.StatusGone:
		return nil, false, nil
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
		return nil, false, fmt.Errorf("%w: download %s: status %d", ErrInvalidRef, target, code)
	default:
		return nil, false, fmt.Errorf("download %s: status %d", target, code)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxImageBytes {
		return nil, false, fmt.Errorf("%w: image at %s larger than %d bytes", ErrInvalidRef, target, maxImageBytes)
	}
	return data, true, nil
}
