package classifier

import (
	"errors"
	"time"

	"Myagara/pkg/log"
	"Myagara/pkg/nn"
	"Myagara/pkg/redis"
	"Myagara/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const cachePrefix = "classification"

// cached serves repeated images from Redis. Keys include the model version,
// so a new artifact never sees predictions of an older one.
type cached struct {
	inner Classifier
	store redis.IRedis
	ttl   time.Duration
	utils utils.IUtils
	log   *logrus.Logger
}

// WithCache wraps c. Cache failures are logged and fall through to c.
func WithCache(c Classifier, store redis.IRedis, ttl time.Duration, logger *logrus.Logger) Classifier {
	return &cached{
		inner: c,
		store: store,
		ttl:   ttl,
		utils: utils.New(0),
		log:   logger,
	}
}

func (c *cached) key(image []byte) string {
	return cachePrefix + ":" + c.inner.Metadata().ModelVersion + ":" + c.utils.ContentHash(image)
}

func (c *cached) Classify(ctx context.Context, image []byte) (*Prediction, error) {
	key := c.key(image)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var p Prediction
		if err := jsoniter.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		c.log.WithFields(log.Fields{"key": key}).Warn("Dropping undecodable cached prediction")
	case !errors.Is(err, redis.ErrCacheMiss):
		c.log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Prediction cache unavailable")
	}

	p, err := c.inner.Classify(ctx, image)
	if err != nil {
		return nil, err
	}

	if raw, err := jsoniter.Marshal(p); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Failed to cache prediction")
		}
	}
	return p, nil
}

func (c *cached) Metadata() nn.Metadata {
	return c.inner.Metadata()
}

func (c *cached) Close() error {
	return errors.Join(c.inner.Close(), c.store.Close())
}
