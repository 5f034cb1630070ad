package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

// ResourceCatalog resolves a doctor or lab into its bookable description.
type ResourceCatalog interface {
	GetResource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error)
}

// Invalidator is implemented by catalogs that hold resources between calls.
type Invalidator interface {
	Invalidate(ctx context.Context, ref domain.ResourceRef) error
}

var _ Invalidator = (*CachedCatalog)(nil)

// CachedCatalog is a read-through redis cache in front of another catalog.
// Concurrent misses for the same resource share one upstream call. A
// failing redis degrades to the upstream catalog.
type CachedCatalog struct {
	next   ResourceCatalog
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	Logger *logrus.Logger
}

func NewCachedCatalog(next ResourceCatalog, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedCatalog {
	return &CachedCatalog{
		next:   next,
		redis:  client,
		ttl:    ttl,
		Logger: logger,
	}
}

func cacheKey(ref domain.ResourceRef) string {
	return "scheduling:resource:" + ref.String()
}

func (c *CachedCatalog) GetResource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	key := cacheKey(ref)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		res, decodeErr := decodeResource(data)
		if decodeErr == nil {
			return res, nil
		}
		c.Logger.WithFields(logrus.Fields{
			"Function": "GetResource",
			"Resource": ref.String(),
			"Error":    decodeErr,
		}).Warn("Discarding undecodable cache entry")
	case err != redis.Nil:
		c.Logger.WithFields(logrus.Fields{
			"Function": "GetResource",
			"Resource": ref.String(),
			"Error":    err,
		}).Warn("Resource cache unavailable, reading catalog")
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := c.next.GetResource(ctx, ref)
		if err != nil {
			return nil, err
		}
		if payload, err := encodeResource(res); err == nil {
			if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				c.Logger.WithFields(logrus.Fields{
					"Function": "GetResource",
					"Resource": ref.String(),
					"Error":    err,
				}).Warn("Failed to populate resource cache")
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Resource), nil
}

// Invalidate drops the cached entry so the next read goes upstream.
func (c *CachedCatalog) Invalidate(ctx context.Context, ref domain.ResourceRef) error {
	if err := c.redis.Del(ctx, cacheKey(ref)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

type cachedWindow struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type cachedResource struct {
	Kind             domain.ResourceKind `json:"kind"`
	ID               string              `json:"id"`
	OwnerID          string              `json:"owner_id"`
	TimeZone         string              `json:"time_zone"`
	Windows          []cachedWindow      `json:"windows"`
	MaxConcurrent    int                 `json:"max_concurrent,omitempty"`
	ToleranceSeconds int64               `json:"tolerance_seconds,omitempty"`
}

func encodeResource(res *domain.Resource) ([]byte, error) {
	dto := cachedResource{
		Kind:             res.Ref.Kind,
		ID:               res.Ref.ID,
		OwnerID:          res.OwnerID,
		TimeZone:         res.TimeZone,
		MaxConcurrent:    res.MaxConcurrentBookings,
		ToleranceSeconds: int64(res.ConcurrencyTolerance / time.Second),
	}
	for _, w := range res.Windows {
		dto.Windows = append(dto.Windows, cachedWindow{Day: w.Day.String(), Start: w.Start.String(), End: w.End.String()})
	}
	return json.Marshal(dto)
}

func decodeResource(data []byte) (*domain.Resource, error) {
	var dto cachedResource
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	res := &domain.Resource{
		Ref:                   domain.ResourceRef{Kind: dto.Kind, ID: dto.ID},
		OwnerID:               dto.OwnerID,
		TimeZone:              dto.TimeZone,
		MaxConcurrentBookings: dto.MaxConcurrent,
		ConcurrencyTolerance:  time.Duration(dto.ToleranceSeconds) * time.Second,
	}
	for _, w := range dto.Windows {
		window, err := domain.NewAvailabilityWindow(dto.Kind, w.Day, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		res.Windows = append(res.Windows, window)
	}
	return res, nil
}
