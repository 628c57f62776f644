// Package preview fetches link previews from remote metadata providers.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/utils"
)

const (
	// DefaultMicrolinkEndpoint is the public Microlink API.
	DefaultMicrolinkEndpoint = "https://api.microlink.io"

	defaultTimeout = 8 * time.Second
	maxBodyBytes   = 256 * 1024
)

// ErrNoPreview is returned when no provider produced a preview.
var ErrNoPreview = errors.New("no preview available")

// Fetcher returns the preview of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*domain.Preview, error)
}

// Provider is one named preview source.
type Provider interface {
	Fetcher
	Name() string
}

// MetaProvider queries a metadata endpoint answering GET <endpoint>?url=<target>
// with {title, description, image, site, url}.
type MetaProvider struct {
	endpoint string
	client   *http.Client
}

func NewMetaProvider(endpoint string, client *http.Client) *MetaProvider {
	return &MetaProvider{endpoint: endpoint, client: orDefault(client)}
}

func (p *MetaProvider) Name() string { return "meta" }

func (p *MetaProvider) Fetch(ctx context.Context, target string) (*domain.Preview, error) {
	var out domain.Preview
	if err := getJSON(ctx, p.client, p.endpoint, target, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		out.URL = target
	}
	return &out, nil
}

// MicrolinkProvider queries the Microlink API.
type MicrolinkProvider struct {
	endpoint string
	client   *http.Client
}

func NewMicrolinkProvider(endpoint string, client *http.Client) *MicrolinkProvider {
	if endpoint == "" {
		endpoint = DefaultMicrolinkEndpoint
	}
	return &MicrolinkProvider{endpoint: endpoint, client: orDefault(client)}
}

func (p *MicrolinkProvider) Name() string { return "microlink" }

type microlinkResponse struct {
	Data *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Publisher   string `json:"publisher"`
		Image       *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

func (p *MicrolinkProvider) Fetch(ctx context.Context, target string) (*domain.Preview, error) {
	var resp microlinkResponse
	if err := getJSON(ctx, p.client, p.endpoint, target, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, errors.New("microlink returned no data")
	}

	out := &domain.Preview{
		URL:         target,
		Title:       resp.Data.Title,
		Description: resp.Data.Description,
		Site:        resp.Data.Publisher,
	}
	if resp.Data.Image != nil {
		out.Image = resp.Data.Image.URL
	}
	return out, nil
}

// Chain tries each provider in order and returns the first success.
type Chain struct {
	providers []Provider
	logger    logger.Logger
}

func NewChain(log logger.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: log}
}

func (c *Chain) Fetch(ctx context.Context, target string) (*domain.Preview, error) {
	for _, p := range c.providers {
		out, err := p.Fetch(ctx, target)
		if err == nil {
			return out, nil
		}
		c.logger.Warn("preview provider failed",
			logger.String("provider", p.Name()),
			logger.String("url", target),
			logger.Error(err))
	}
	return nil, ErrNoPreview
}

func getJSON(ctx context.Context, client *http.Client, endpoint, target string, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func orDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}
