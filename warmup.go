package nativemodule

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/nativemodule/engine"
	"golang.org/x/sync/errgroup"
)

// Warmup compiles every bundled module so that each ends up with a code
// cache, for example before exporting them. Each module is compiled in its
// own context with the given globals, using the parameter list returned by
// params. All modules are attempted; the returned error lists every module
// that failed.
func (l *Loader) Warmup(ctx context.Context, globals map[string]any, params func(id string) []string) error {
	ids := l.sources.IDs()
	limit := l.warmupLimit
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(limit, max(len(ids), 1)))
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ec := engine.NewContext(globals)
			if _, err := l.LookupAndCompile(gctx, ec, id, params(id), NoEnv()); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("warmup %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	l.logger.Debug().Int("modules", len(ids)).Msg("warmup complete")
	return result.ErrorOrNil()
}
