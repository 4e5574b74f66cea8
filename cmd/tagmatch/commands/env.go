package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/haivivi/tagmatch/cmd/tagmatch/internal/config"
	"github.com/haivivi/tagmatch/pkg/artifact"
	"github.com/haivivi/tagmatch/pkg/embed"
	"github.com/haivivi/tagmatch/pkg/kv"
	"github.com/haivivi/tagmatch/pkg/match"
	"github.com/haivivi/tagmatch/pkg/storage"
)

// openStore returns the artifact store: S3 when configured, otherwise the
// local artifact directory.
func openStore(cfg *config.Config) (storage.FileStore, error) {
	if s := cfg.Artifact.S3; s != nil {
		region := s.Region
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		if region == "" {
			region = "us-east-1"
		}
		opts := s3.Options{
			Region:       region,
			Credentials:  aws.NewCredentialsCache(envCredentials()),
			UsePathStyle: s.PathStyle,
		}
		if s.Endpoint != "" {
			opts.BaseEndpoint = aws.String(s.Endpoint)
		}
		return storage.NewS3(s3.New(opts), s.Bucket, s.Prefix), nil
	}
	store, err := storage.NewLocal(cfg.Artifact.Dir)
	if err != nil {
		return nil, fmt.Errorf("open artifact dir: %w", err)
	}
	return store, nil
}

func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
}

// openEmbedder builds the configured embedder wrapped in the embedding
// cache. It returns a nil embedder when the provider is "none". cleanup
// is never nil.
func openEmbedder(ctx context.Context, cfg *config.Config) (e embed.Embedder, cleanup func(), err error) {
	cleanup = func() {}
	ec := cfg.Embedding
	var opts []embed.Option
	if ec.Model != "" {
		opts = append(opts, embed.WithModel(ec.Model))
	}
	if ec.Dimension > 0 {
		opts = append(opts, embed.WithDimension(ec.Dimension))
	}
	if ec.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(ec.BaseURL))
	}
	if ec.MaxBatch > 0 {
		opts = append(opts, embed.WithMaxBatch(ec.MaxBatch))
	}

	switch ec.Provider {
	case config.ProviderNone:
		return nil, cleanup, nil
	case config.ProviderHash:
		// Computed locally; nothing worth caching.
		return embed.NewHash(ec.Dimension), cleanup, nil
	case config.ProviderOpenAI, config.ProviderDashScope, config.ProviderGemini:
	default:
		return nil, cleanup, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}

	key := ec.APIKey()
	if key == "" {
		return nil, cleanup, fmt.Errorf("embedding provider %s: no API key in the environment", ec.Provider)
	}
	switch ec.Provider {
	case config.ProviderOpenAI:
		e = embed.NewOpenAI(key, opts...)
	case config.ProviderDashScope:
		e = embed.NewDashScope(key, opts...)
	case config.ProviderGemini:
		e, err = embed.NewGemini(ctx, key, opts...)
		if err != nil {
			return nil, cleanup, err
		}
	}

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	if cache == nil {
		return e, cleanup, nil
	}
	return embed.NewCached(e, cache, logger), closeCache, nil
}

// openCache opens the embedding cache, or returns nil for kind "none".
func openCache(cfg *config.Config) (embed.Cache, func(), error) {
	c := cfg.Cache
	switch c.Kind {
	case config.CacheBadger:
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: c.Dir, Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		return embed.NewKVCache(store), func() { store.Close() }, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		cache := embed.NewRedisCache(client, c.RedisPrefix, time.Duration(c.TTL))
		return cache, func() { client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// session is a loaded artifact with a pipeline over it.
type session struct {
	bundle   *artifact.Bundle
	pipeline *match.Pipeline
	vector   bool
	close    func()
}

// openSession loads the artifact and builds the match pipeline. The vector
// stage is enabled only when the artifact has vectors and the configured
// embedder produces the same model and dimension.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	bundle, err := artifact.Load(ctx, store, logger)
	if err != nil {
		return nil, fmt.Errorf("load artifact from %s: %w", store, err)
	}

	s := &session{bundle: bundle, close: func() {}}
	opts := []match.Option{match.WithLogger(logger)}
	if bundle.HasVectors() && !cfg.Matching.DisableVector {
		e, closeEmb, err := openEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.close = closeEmb
		info := bundle.Manifest.Embedding
		switch {
		case e == nil:
			logger.Info("vector stage off: no embedding provider configured")
		case info != nil && (info.Model != e.Model() || info.Dimension != e.Dimension()):
			logger.Warn("vector stage off: embedder differs from the artifact",
				"artifact_model", info.Model, "artifact_dim", info.Dimension,
				"model", e.Model(), "dim", e.Dimension())
		default:
			opts = append(opts, match.WithVector(match.NewSemantic(e, bundle.Vectors)))
			s.vector = true
		}
	}

	p, err := match.New(bundle.Catalog, cfg.MatchConfig(), opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline = p
	return s, nil
}
