package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/services"
)

// localResolver reads non-HTTP asset references from disk, relative to base.
type localResolver struct {
	base   string
	remote services.AssetResolver
}

func (r *localResolver) Fetch(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.remote.Fetch(ctx, ref)
	}

	path := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.base, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetch, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", models.ErrFetch, ref, err)
	}
	return img, nil
}
