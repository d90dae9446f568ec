package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"archaeologist/internal/gateway/config"
	"archaeologist/internal/plan"
)

// PlanStores is the plan persistence stack: an origin store (Postgres, S3, a
// JSON file or memory) behind an expiring cache, fronted by the gateway.
type PlanStores struct {
	Gateway *plan.Gateway
	Cache   *plan.CachedStore
	closers []func() error
}

func (p *PlanStores) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func NewPlanStores(ctx context.Context, cfg *config.Config) (*PlanStores, error) {
	out := &PlanStores{}
	origin, err := chooseOrigin(ctx, cfg, out)
	if err != nil {
		return nil, err
	}
	cacheCfg := plan.DefaultCacheConfig()
	if cfg.PlanStore.CacheTTL > 0 {
		cacheCfg.RecordTTL = cfg.PlanStore.CacheTTL
	}
	out.Cache = plan.NewCachedStore(origin, cacheCfg)
	out.Gateway = plan.NewGateway(out.Cache)
	return out, nil
}

func chooseOrigin(ctx context.Context, cfg *config.Config, out *PlanStores) (plan.Store, error) {
	if dsn := strings.TrimSpace(cfg.PlanStore.PostgresDSN); dsn != "" {
		pg, err := plan.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open plan store: %w", err)
		}
		out.closers = append(out.closers, pg.Close)
		log.Printf("plan store: postgres")
		return pg, nil
	}
	if cfg.Artifact.CanUseS3() {
		s3Cfg := plan.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := plan.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize plan s3 store: %w", err)
		}
		log.Printf("plan store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}
	if path := strings.TrimSpace(cfg.PlanStore.File); path != "" {
		fs, err := plan.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize plan file store: %w", err)
		}
		log.Printf("plan store: file %s", path)
		return fs, nil
	}
	if cfg.Artifact.Enabled {
		log.Printf("plan store: using in-memory fallback (s3 config incomplete)")
	} else {
		log.Printf("plan store: in-memory")
	}
	return plan.NewMemoryStore(), nil
}
