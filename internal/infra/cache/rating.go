package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/cryptoguard/cryptoguard/internal/domain"
)

const ratingTTL = 5 * time.Minute

// RatingCache keeps rating lists in memcached, keyed by a hash of the domain key.
type RatingCache struct {
	mc *memcache.Client
}

func NewRatingCache(mc *memcache.Client) *RatingCache {
	return &RatingCache{mc: mc}
}

func ratingKey(domainKey string) string {
	return "ratings:" + strconv.FormatUint(xxh3.HashString(domainKey), 16)
}

func (c *RatingCache) Get(ctx context.Context, domainKey string) ([]domain.Rating, bool) {
	item, err := c.mc.Get(ratingKey(domainKey))
	if err != nil {
		if err != memcache.ErrCacheMiss {
			slog.WarnContext(ctx, "rating cache get failed", slog.String("module", "cache"), slog.String("error", err.Error()))
		}
		return nil, false
	}

	var ratings []domain.Rating
	if err := json.Unmarshal(item.Value, &ratings); err != nil {
		return nil, false
	}
	return ratings, true
}

func ratingItem(domainKey string, ratings []domain.Rating) (*memcache.Item, error) {
	value, err := json.Marshal(ratings)
	if err != nil {
		return nil, err
	}
	return &memcache.Item{
		Key:        ratingKey(domainKey),
		Value:      value,
		Expiration: int32(ratingTTL.Seconds()),
	}, nil
}

func (c *RatingCache) Set(ctx context.Context, domainKey string, ratings []domain.Rating) {
	item, err := ratingItem(domainKey, ratings)
	if err != nil {
		return
	}
	err = c.mc.Set(item)
	if err != nil {
		slog.WarnContext(ctx, "rating cache set failed", slog.String("module", "cache"), slog.String("error", err.Error()))
	}
}

// Fill uses memcache add: an entry written after a newer write is left alone.
func (c *RatingCache) Fill(ctx context.Context, domainKey string, ratings []domain.Rating) {
	item, err := ratingItem(domainKey, ratings)
	if err != nil {
		return
	}
	err = c.mc.Add(item)
	if err != nil && err != memcache.ErrNotStored {
		slog.WarnContext(ctx, "rating cache fill failed", slog.String("module", "cache"), slog.String("error", err.Error()))
	}
}

func (c *RatingCache) Invalidate(ctx context.Context, domainKey string) {
	err := c.mc.Delete(ratingKey(domainKey))
	if err != nil && err != memcache.ErrCacheMiss {
		slog.WarnContext(ctx, "rating cache invalidate failed", slog.String("module", "cache"), slog.String("error", err.Error()))
	}
}
