package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"puzzle-gate-service/internal/domain"
)

// CatalogLoader fetches the question bank from a backing store (file, Postgres, etc).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogRepository caches catalog entries in Redis hashes and falls back to
// the loader on a cache miss. Entries are stored as:
//
//	HSET puzzle:catalog:questions {id} {question}
//	HSET puzzle:catalog:solutions {id} {solution}
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const (
	questionsKey = "puzzle:catalog:questions"
	solutionsKey = "puzzle:catalog:solutions"
)

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	questions, err := r.client.HGetAll(ctx, questionsKey).Result()
	if err == nil && len(questions) > 0 {
		solutions, _ := r.client.HGetAll(ctx, solutionsKey).Result()
		return buildCatalogFromCache(questions, solutions), nil
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		questions, err := r.client.HGetAll(ctx, questionsKey).Result()
		if err == nil && len(questions) > 0 {
			solutions, _ := r.client.HGetAll(ctx, solutionsKey).Result()
			return buildCatalogFromCache(questions, solutions), nil
		}

		catalog, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for id, q := range catalog {
			pipe.HSet(ctx, questionsKey, id, q.Question)
			pipe.HSet(ctx, solutionsKey, id, q.Solution)
		}
		if ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
			pipe.Expire(ctx, solutionsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func buildCatalogFromCache(questions, solutions map[string]string) domain.Catalog {
	catalog := make(domain.Catalog, len(questions))
	for id, question := range questions {
		catalog[id] = domain.Question{
			ID:       id,
			Question: question,
			Solution: solutions[id],
		}
	}
	return catalog
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
