package starfish

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of listings fetched at once.
const DefaultConcurrency = 8

// VolumeSubpaths lists the top level directories of every volume
// concurrently, at most limit at a time (DefaultConcurrency if limit <= 0).
// The first failure cancels the remaining listings.
func (c *Client) VolumeSubpaths(ctx context.Context, volumes []string, limit int) (map[string][]string, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	result := make(map[string][]string, len(volumes))

	for _, volume := range volumes {
		g.Go(func() error {
			paths, err := c.Subpaths(ctx, volume+":")
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("volume", volume).
					Msg("Failed to list volume")
				return err
			}

			mu.Lock()
			result[volume] = paths
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
