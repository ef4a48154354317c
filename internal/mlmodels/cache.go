package mlmodels

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/2beens/fitsense/internal/fitness"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const minCacheSizeMB = 1

var _ fitness.ModelRepository = (*CachedRegistry)(nil)

// CachedRegistry memoizes model invocations by model name and feature vector.
// Errors are not cached.
type CachedRegistry struct {
	models     fitness.ModelRepository
	cache      *freecache.Cache
	ttlSeconds int
}

// NewCachedRegistry wraps models with a freecache of sizeMB megabytes.
// ttlSeconds <= 0 means entries only leave the cache on eviction.
func NewCachedRegistry(models fitness.ModelRepository, sizeMB, ttlSeconds int) *CachedRegistry {
	if sizeMB < minCacheSizeMB {
		sizeMB = minCacheSizeMB
	}
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}
	return &CachedRegistry{
		models:     models,
		cache:      freecache.NewCache(sizeMB * 1024 * 1024),
		ttlSeconds: ttlSeconds,
	}
}

func (c *CachedRegistry) List() []string {
	return c.models.List()
}

func (c *CachedRegistry) Has(name string) bool {
	return c.models.Has(name)
}

func (c *CachedRegistry) Invoke(ctx context.Context, name string, features fitness.Features) ([]float64, error) {
	key := cacheKey(name, features)

	if cached, err := c.cache.Get(key); err == nil {
		if output, err := decodeOutput(cached); err == nil {
			return output, nil
		}
		log.Warnf("prediction cache: corrupted entry for model [%s], dropping", name)
		c.cache.Del(key)
	} else if !errors.Is(err, freecache.ErrNotFound) {
		log.Warnf("prediction cache get [%s]: %s", name, err)
	}

	output, err := c.models.Invoke(ctx, name, features)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(key, encodeOutput(output), c.ttlSeconds); err != nil {
		log.Debugf("prediction cache set [%s]: %s", name, err)
	}
	return output, nil
}

func (c *CachedRegistry) HitCount() int64 {
	return c.cache.HitCount()
}

func (c *CachedRegistry) MissCount() int64 {
	return c.cache.MissCount()
}

func cacheKey(name string, features fitness.Features) []byte {
	var sb strings.Builder
	sb.WriteString(name)
	for i, featureName := range features.Names {
		sb.WriteByte('|')
		sb.WriteString(featureName)
		sb.WriteByte('=')
		if i < len(features.Values) {
			sb.WriteString(strconv.FormatFloat(features.Values[i], 'g', -1, 64))
		}
	}
	return []byte(sb.String())
}

func encodeOutput(output []float64) []byte {
	buf := make([]byte, 8*len(output))
	for i, v := range output {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeOutput(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid cached output length: %d", len(data))
	}
	output := make([]float64, len(data)/8)
	for i := range output {
		output[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return output, nil
}
