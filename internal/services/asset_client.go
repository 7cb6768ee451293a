package services

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	// Decoders for the asset formats we accept.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/singleflight"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// AssetClient fetches background and logo images over HTTP.
type AssetClient struct {
	client *http.Client
}

func NewAssetClient(timeout time.Duration) *AssetClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AssetClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *AssetClient) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrFetch, url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: asset server returned %d", models.ErrFetch, url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", models.ErrFetch, url, err)
	}
	return img, nil
}

// CachedResolver memoizes successful fetches by URL, so a background shared by
// a whole batch is downloaded once. Failures are not cached.
type CachedResolver struct {
	next  AssetResolver
	group singleflight.Group

	mu     sync.Mutex
	images map[string]image.Image
}

func NewCachedResolver(next AssetResolver) *CachedResolver {
	return &CachedResolver{
		next:   next,
		images: make(map[string]image.Image),
	}
}

// Fetch returns the cached image for url. Concurrent misses on the same url
// share one download.
func (c *CachedResolver) Fetch(ctx context.Context, url string) (image.Image, error) {
	c.mu.Lock()
	img, ok := c.images[url]
	c.mu.Unlock()
	if ok {
		return img, nil
	}

	v, err, _ := c.group.Do(url, func() (interface{}, error) {
		c.mu.Lock()
		img, ok := c.images[url]
		c.mu.Unlock()
		if ok {
			return img, nil
		}
		img, err := c.next.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.images[url] = img
		c.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}
