package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/slab"
	"github.com/23skdu/slab/internal/logging"
	"github.com/23skdu/slab/internal/memory"
	"github.com/23skdu/slab/internal/region"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := LoadConfig("SLAB")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("slabdemo failed")
		os.Exit(1)
	}
}

// run executes the workload and, when a metrics address is configured,
// serves /metrics until ctx is cancelled.
func run(ctx context.Context, cfg Config, logger *zerolog.Logger, out io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info().Str("address", cfg.MetricsAddr).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := runPool(cfg, logger, out); err != nil {
			return err
		}
		if cfg.Arrow {
			return runArrow(cfg, logger, out)
		}
		return nil
	})

	return g.Wait()
}

func newPool(cfg Config, logger *zerolog.Logger) (*slab.Pool[uint32], error) {
	opts := []slab.Option{
		slab.WithName("demo"),
		slab.WithWordBits(cfg.WordBits),
		slab.WithLogger(logger),
	}
	if !cfg.Placement {
		return slab.New[uint32](cfg.Chunks, opts...)
	}

	r, err := region.Map(slab.RequiredSize[uint32](cfg.Chunks, opts...))
	if err != nil {
		return nil, err
	}
	pool, err := slab.Init[uint32](r.Bytes(), cfg.Chunks, append(opts, slab.WithCloser(r.Close))...)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return pool, nil
}

// runPool fills the pool to capacity, prints every handle and releases them.
func runPool(cfg Config, logger *zerolog.Logger, out io.Writer) (err error) {
	pool, err := newPool(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	boxes := make([]slab.Box[uint32], 0, pool.Capacity())
	for i := 0; i < pool.Capacity(); i++ {
		b, ok := pool.Allocate(uint32(i))
		if !ok {
			return fmt.Errorf("pool exhausted after %d of %d allocations", i, pool.Capacity())
		}
		boxes = append(boxes, b)
	}
	for _, b := range boxes {
		fmt.Fprintf(out, "chunk=%d cell=%d value=%s\n", b.Chunk(), b.Cell(), b)
	}

	if _, err := pool.AllocateErr(0); !errors.Is(err, slab.ErrExhausted) {
		return fmt.Errorf("allocation past capacity: got %v, want %v", err, slab.ErrExhausted)
	}

	printStats(out, pool.Stats())
	fmt.Fprintf(out, "occupied cells: %d\n", pool.Occupancy().GetCardinality())

	for _, b := range boxes {
		if err := b.Release(); err != nil {
			return err
		}
	}
	printStats(out, pool.Stats())
	return nil
}

// runArrow builds an Arrow array whose small buffers come from a cell pool.
func runArrow(cfg Config, logger *zerolog.Logger, out io.Writer) error {
	cells, err := memory.NewCellAllocator(memory.CellAllocatorConfig{
		Chunks:    cfg.Chunks,
		WordBits:  cfg.WordBits,
		Placement: cfg.Placement,
		Name:      "demo-cells",
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer cells.Close()

	mem := memory.NewTrackingAllocator(cells)
	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()

	for i := 0; i < cfg.Chunks*4; i++ {
		if i%5 == 4 {
			bldr.AppendNull()
			continue
		}
		bldr.Append(int32(i))
	}
	arr := bldr.NewInt32Array()
	fmt.Fprintf(out, "arrow: %v\n", arr)
	arr.Release()

	logger.Info().
		Int64("bytes_allocated", mem.BytesAllocated()).
		Int64("bytes_freed", mem.BytesFreed()).
		Int64("peak_bytes", mem.Peak()).
		Int("live_cells", cells.LiveCells()).
		Msg("arrow workload finished")
	return nil
}

func printStats(out io.Writer, s slab.Stats) {
	fmt.Fprintf(out, "pool=%s chunks=%d word_bits=%d capacity=%d in_use=%d full=%d empty=%d placement=%t utilization=%.2f\n",
		s.Name, s.Chunks, s.WordBits, s.Capacity, s.InUse, s.FullChunks, s.EmptyChunks, s.Placement, s.Utilization())
}
