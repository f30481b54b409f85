package github_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/davarch/apt-publisher/internal/domain"
)

const DefaultBaseURL = "https://api.github.com"

type Client struct {
	baseUrl   string
	userAgent string
	api       *http.Client
	dl        *http.Client
}

// New builds a client whose metadata requests are bounded by timeout.
// Downloads only carry connection and response-header timeouts.
func New(baseUrl string, timeout time.Duration, userAgent string) *Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	if baseUrl == "" {
		baseUrl = DefaultBaseURL
	}

	return &Client{
		baseUrl:   trimSlash(baseUrl),
		userAgent: userAgent,
		api:       &http.Client{Transport: tr, Timeout: timeout},
		dl:        &http.Client{Transport: tr},
	}
}

type assetDTO struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

type releaseDTO struct {
	TagName string     `json:"tag_name"`
	Assets  []assetDTO `json:"assets"`
}

func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (domain.Release, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseUrl, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	c.setUA(req)

	resp, err := c.api.Do(req)
	if err != nil {
		return domain.Release{}, fmt.Errorf("latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Release{}, &domain.StatusError{Op: "latest release", Code: resp.StatusCode, Status: resp.Status}
	}

	var dto releaseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return domain.Release{}, fmt.Errorf("decode release: %w", err)
	}

	out := domain.Release{Tag: dto.TagName, Assets: make([]domain.Asset, 0, len(dto.Assets))}
	for _, a := range dto.Assets {
		out.Assets = append(out.Assets, domain.Asset{Name: a.Name, DownloadURL: a.DownloadURL, Size: a.Size})
	}
	return out, nil
}

// Download streams url into dir/name through a .part file.
func (c *Client) Download(ctx context.Context, url, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/octet-stream")
	c.setUA(req)

	resp, err := c.dl.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.StatusError{Op: "download", Code: resp.StatusCode, Status: resp.Status}
	}

	dest := filepath.Join(dir, name)
	part := dest + ".part"

	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(part)
		return "", fmt.Errorf("download: write %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(part)
		return "", err
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return "", err
	}

	return dest, nil
}

func (c *Client) setUA(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
