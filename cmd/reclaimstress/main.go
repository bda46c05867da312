// Command reclaimstress hammers a Treiber stack whose nodes are recycled by a
// reclaim.Reclaimer and reports if a recycled node was ever observed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/errs"
	"github.com/zeebo/pcg"
	"go.uber.org/zap"

	"github.com/zeebo/reclaim"
	"github.com/zeebo/reclaim/promreclaim"
)

var (
	workers    = flag.Int("workers", runtime.GOMAXPROCS(0), "number of goroutines using the stack")
	ops        = flag.Int("ops", 1000000, "operations per goroutine")
	pushes     = flag.Int("push", 50, "percentage of operations that push")
	seed       = flag.Uint64("seed", 0, "seed of the first goroutine, 0 picks one from the clock")
	backlog    = flag.Int("backlog", reclaim.DefaultInitialBacklog, "initial backlog of every context")
	maxBacklog = flag.Int("max-backlog", 0, "maximum backlog of every context, 0 is unbounded")
	threshold  = flag.Float64("threshold", reclaim.DefaultScanThreshold, "backlog fill ratio that triggers a scan")
	metrics    = flag.String("metrics", "", "address to serve prometheus metrics on, for example :9090")
	linger     = flag.Duration("linger", 0, "keep serving metrics for this long after the run")
	verbose    = flag.Bool("v", false, "log debug events")
)

// Error is the class of errors returned by the stress run.
var Error = errs.Class("reclaimstress")

func main() {
	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Error("stress run failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}

func run(log *zap.Logger) (err error) {
	if *workers <= 0 || *ops < 0 || *pushes < 0 || *pushes > 100 {
		return Error.New("invalid flags: workers=%d ops=%d push=%d", *workers, *ops, *pushes)
	}
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	var terminated, corrupt atomic.Uint64
	r, err := reclaim.New(reclaim.Config[item]{
		Terminate: func(n *reclaim.Node[item], concurrent bool) {
			if n.Value().value.Swap(0) == 0 {
				corrupt.Add(1)
			}
			terminated.Add(1)
		},
		InitialBacklog: *backlog,
		MaxBacklog:     *maxBacklog,
		ScanThreshold:  *threshold,
		Log:            log,
	})
	if err != nil {
		return Error.Wrap(err)
	}

	if *metrics != "" {
		stop, serr := serveMetrics(log, r)
		if serr != nil {
			return serr
		}
		defer func() {
			if *linger > 0 {
				log.Info("serving metrics after the run", zap.Duration("linger", *linger))
				time.Sleep(*linger)
			}
			err = errs.Combine(err, stop())
		}()
	}

	log.Info("starting",
		zap.Int("workers", *workers),
		zap.Int("ops", *ops),
		zap.Uint64("seed", *seed))

	var s stack
	var pushed, popped atomic.Uint64
	var group errs.Group
	var mu sync.Mutex

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := work(r, &s, *seed+uint64(i), uint64(i), &pushed, &popped, &corrupt)
			mu.Lock()
			group.Add(err)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if err := group.Err(); err != nil {
		return Error.Wrap(err)
	}

	c, err := r.NewContext()
	if err != nil {
		return Error.Wrap(err)
	}
	for {
		_, ok, err := s.pop(c)
		if err != nil {
			return Error.Wrap(err)
		}
		if !ok {
			break
		}
		popped.Add(1)
	}
	c.Close()
	r.Close()

	stats := r.Stats()
	log.Info("finished",
		zap.Duration("elapsed", elapsed),
		zap.Float64("ops_per_second", float64((*workers)*(*ops))/elapsed.Seconds()),
		zap.Uint64("pushed", pushed.Load()),
		zap.Uint64("popped", popped.Load()),
		zap.Uint64("terminated", terminated.Load()),
		zap.Uint64("deferred", stats.Deferred),
		zap.Uint64("scans", stats.Scans),
		zap.Uint64("global_cleans", stats.GlobalCleans),
		zap.Uint64("backlog_growths", stats.RopeGrowths))

	switch {
	case corrupt.Load() > 0:
		return Error.New("%d recycled nodes were observed", corrupt.Load())
	case pushed.Load() != popped.Load():
		return Error.New("pushed %d values but popped %d", pushed.Load(), popped.Load())
	case terminated.Load() != stats.Allocs:
		return Error.New("allocated %d nodes but terminated %d", stats.Allocs, terminated.Load())
	}
	return nil
}

// work runs the operations of one goroutine with its own context. Values
// pushed are never zero, so a popped zero is a node that was terminated while
// it was still reachable.
func work(r *reclaim.Reclaimer[item], s *stack, seed, id uint64, pushed, popped, corrupt *atomic.Uint64) error {
	c, err := r.Context(id)
	if err != nil {
		return err
	}
	defer c.Close()

	rng := pcg.New(seed)
	for j := 0; j < *ops; j++ {
		if rng.Uint32n(100) < uint32(*pushes) {
			s.push(c, id<<32|uint64(j)+1)
			pushed.Add(1)
			continue
		}

		v, ok, err := s.pop(c)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if v == 0 {
			corrupt.Add(1)
		}
		popped.Add(1)
	}
	return nil
}

func serveMetrics(log *zap.Logger, r *reclaim.Reclaimer[item]) (stop func() error, err error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(promreclaim.New("stress", r, nil)); err != nil {
		return nil, Error.Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: *metrics, Handler: mux}

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	log.Info("serving metrics", zap.String("addr", *metrics))

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return Error.Wrap(err)
		}
		if err := <-done; !errors.Is(err, http.ErrServerClosed) {
			return Error.Wrap(err)
		}
		return nil
	}, nil
}
