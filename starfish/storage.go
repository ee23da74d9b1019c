package starfish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Volume is one entry of the storage listing.
type Volume struct {
	Name string `json:"name"`
}

// Entry is one directory entry under a volume path.
type Entry struct {
	Basename string `json:"Basename"`
}

// MembershipType selects the user or group membership mapping.
type MembershipType string

const (
	// MembershipUser maps volumes to users
	MembershipUser MembershipType = "user"
	// MembershipGroup maps volumes to groups
	MembershipGroup MembershipType = "group"
)

// Volumes lists the volumes accessible via the API server
func (c *Client) Volumes(ctx context.Context) ([]Volume, error) {
	volumes, err := NewCursor[Volume](c, Get("storage/")).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get volumes: %w", err)
	}
	return volumes, nil
}

// VolumeNames returns the names of the volumes accessible via the API server
func (c *Client) VolumeNames(ctx context.Context) ([]string, error) {
	volumes, err := c.Volumes(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(volumes))
	for _, v := range volumes {
		names = append(names, v.Name)
	}

	c.logger.Debug().Int("count", len(names)).Msg("Retrieved volume names from Starfish")
	return names, nil
}

// Subpaths returns the top level directories under volpath ("volume:path").
func (c *Client) Subpaths(ctx context.Context, volpath string) ([]string, error) {
	if strings.TrimSpace(volpath) == "" {
		return nil, fmt.Errorf("volume path is required")
	}

	cur := NewCursor[Entry](c, Get("storage/"+volpath))
	var paths []string
	for cur.Next(ctx) {
		paths = append(paths, cur.Item().Basename)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to get subpaths of %s: %w", volpath, err)
	}
	return paths, nil
}

// VolumeMembership returns the raw user or group membership mapping of a volume.
func (c *Client) VolumeMembership(ctx context.Context, volume string, mtype MembershipType) (json.RawMessage, error) {
	if mtype != MembershipUser && mtype != MembershipGroup {
		return nil, fmt.Errorf("unknown membership type %q (must be 'user' or 'group')", mtype)
	}

	var out json.RawMessage
	req := Get(fmt.Sprintf("mapping/%s_membership", mtype), Param{Key: "volume_name", Value: volume})
	if err := c.Send(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("failed to get %s membership of %s: %w", mtype, volume, err)
	}
	return out, nil
}
