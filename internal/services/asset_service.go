package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"labrecord/internal/models"

	"github.com/patrickmn/go-cache"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrImageSize       = 150 // pixels, matches the 150x150 codes on the printed sheet
	maxLogoSize       = 10 * 1024 * 1024
	assetCacheTTL     = 1 * time.Hour
	assetFetchTimeout = 15 * time.Second
)

// AssetService produces the images embedded into generated documents: one
// QR code per experiment repository link, plus the college logo fetched
// from a configured URL. Everything here is best-effort; a missing asset
// renders as blank space, never as a failed document.
type AssetService struct {
	client  *http.Client
	cache   *cache.Cache
	logoURL string
}

// NewAssetService creates a new asset service. logoURL may be empty, in
// which case documents render without a logo.
func NewAssetService(logoURL string) *AssetService {
	return &AssetService{
		client: &http.Client{
			Timeout: assetFetchTimeout,
		},
		cache:   cache.New(assetCacheTTL, 10*time.Minute),
		logoURL: logoURL,
	}
}

// Logo returns the logo image bytes, or nil when the logo is unconfigured
// or unreachable.
func (s *AssetService) Logo(ctx context.Context) []byte {
	if s.logoURL == "" {
		return nil
	}

	if cached, found := s.cache.Get("logo"); found {
		return cached.([]byte)
	}

	data, err := s.fetch(ctx, s.logoURL)
	if err != nil {
		log.Printf("⚠️ Could not load logo, continuing without it: %v", err)
		return nil
	}

	s.cache.Set("logo", data, cache.DefaultExpiration)
	return data
}

// QRCodes generates one PNG per experiment, keyed by experiment id.
// Experiments whose links cannot be encoded are simply absent from the map.
func (s *AssetService) QRCodes(experiments []models.Experiment) map[string][]byte {
	codes := make(map[string][]byte, len(experiments))

	for _, exp := range experiments {
		if exp.GithubLink == "" {
			continue
		}

		cacheKey := "qr:" + exp.GithubLink
		if cached, found := s.cache.Get(cacheKey); found {
			codes[exp.ID] = cached.([]byte)
			continue
		}

		png, err := qrcode.Encode(exp.GithubLink, qrcode.Medium, qrImageSize)
		if err != nil {
			log.Printf("⚠️ Could not generate QR code for experiment %s: %v", exp.ID, err)
			continue
		}

		s.cache.Set(cacheKey, png, cache.DefaultExpiration)
		codes[exp.ID] = png
	}

	return codes
}

// fetch retrieves image bytes from an http(s) URL with a size cap.
func (s *AssetService) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxLogoSize {
		return nil, fmt.Errorf("image exceeds %d bytes", maxLogoSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return data, nil
}
