// Command rectify-demo drives a rectify.Rectifier with simulated,
// jittered, occasionally-dropped-and-reordered input streams and prints
// the rectified output timeline. It exists to exercise the library end to
// end the way cmd/sip-tg-bridge exercises the bridge package: a thin main
// that wires config, logging, and signal handling around the library.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rectifier/internal/metrics"
	"rectifier/internal/refclock"
	"rectifier/rectify"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	clock := refclock.New()
	scheduler := refclock.NewScheduler(clock)

	tl := newTimeline(len(cfg.Ports))

	rect, err := rectify.NewRectifier(rectify.RectifierConfig{
		Clock:     clock,
		Scheduler: scheduler,
		FrameRate: rectify.NewFraction(cfg.FrameRateNum, cfg.FrameRateDen),
		NumPorts:  len(cfg.Ports),

		MaxQueueFrames: cfg.MaxQueueFrames,
		MaxMissed:      cfg.MaxMissed,

		Logger:  logger,
		Metrics: collector,
	})
	if err != nil {
		logger.Error("rectifier construction failed", "error", err)
		os.Exit(1)
	}

	for i, p := range cfg.Ports {
		i, p := i, p
		meta := metadataFor(p.Kind)
		if err := rect.BindPort(i, meta, func(f rectify.Frame) error {
			tl.emit(i, p.Kind, f)
			return nil
		}); err != nil {
			logger.Error("bind port failed", "port", i, "error", err)
			os.Exit(1)
		}
	}

	runCtx, runCancel := context.WithTimeout(ctx, cfg.RunDuration)
	defer runCancel()

	g, gctx := errgroup.WithContext(runCtx)
	for i, p := range cfg.Ports {
		i, p := i, p
		g.Go(func() error {
			runGenerator(gctx, rect, i, p)
			return nil
		})
	}
	_ = g.Wait()

	if err := rect.Flush(); err != nil {
		logger.Warn("flush reported errors", "error", err)
	}
	logger.Info("demo complete", "emitted", tl.totalEmitted())
}

func metadataFor(kind string) rectify.Metadata {
	switch kind {
	case "video":
		return rectify.RawVideoMetadata{}
	case "audio":
		return rectify.RawAudioMetadata{}
	default:
		return rectify.RawMetadata{}
	}
}

// runGenerator simulates one noisy source: pushes frames at roughly
// p.FrameTicks intervals, with uniform jitter, occasional drops, and
// occasional reordering within a small lookahead window. This is
// simulation-only scaffolding for the demo, not rectifier logic, so it
// leans on math/rand rather than any of the pack's domain libraries.
func runGenerator(ctx context.Context, rect *rectify.Rectifier, port int, p PortConfig) {
	rng := rand.New(rand.NewSource(int64(port) + 1))
	mediaTime := rectify.Time(0)
	pending := make([]rectify.Time, 0, p.ReorderWindow+1)

	ticker := time.NewTicker(ticksToDuration(p.FrameTicks))
	defer ticker.Stop()

	flushPending := func() {
		if len(pending) == 0 {
			return
		}
		if p.ReorderWindow > 1 && len(pending) > 1 {
			i := rng.Intn(len(pending))
			j := rng.Intn(len(pending))
			pending[i], pending[j] = pending[j], pending[i]
		}
		for _, mt := range pending {
			_ = rect.OnFramePushed(port, mt, &demoPayload{})
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			return
		case <-ticker.C:
			jitter := rectify.Time(0)
			if p.JitterTicks > 0 {
				jitter = rectify.Time(rng.Int63n(2*p.JitterTicks+1) - p.JitterTicks)
			}
			this := mediaTime + jitter
			mediaTime += p.FrameTicks

			if p.DropProbPct > 0 && rng.Intn(100) < p.DropProbPct {
				continue
			}

			pending = append(pending, this)
			if len(pending) >= max(1, p.ReorderWindow) {
				flushPending()
			}
		}
	}
}

func ticksToDuration(ticks rectify.Time) time.Duration {
	return time.Duration(ticks) * time.Second / time.Duration(rectify.CLOCK_RATE)
}

// demoPayload is a trivial rectify.Payload for the demo's synthetic frames.
type demoPayload struct{}

func (d *demoPayload) Ref() rectify.Payload { return d }
func (d *demoPayload) Release() error       { return nil }

// timeline prints one colorized line per emitted frame, colors keyed by
// port index when stdout is a TTY (mirroring the charmbracelet/lipgloss +
// mattn/go-isatty pairing used elsewhere in the pack for terminal output).
type timeline struct {
	styles  []lipgloss.Style
	counts  []int
	colored bool
}

func newTimeline(numPorts int) *timeline {
	t := &timeline{
		styles: make([]lipgloss.Style, numPorts),
		counts: make([]int, numPorts),
	}
	t.colored = isatty.IsTerminal(os.Stdout.Fd())
	palette := []lipgloss.Color{"10", "12", "13", "11", "14"}
	for i := range t.styles {
		c := palette[i%len(palette)]
		t.styles[i] = lipgloss.NewStyle().Foreground(c)
	}
	return t
}

func (t *timeline) emit(port int, kind string, f rectify.Frame) {
	t.counts[port]++
	line := fmt.Sprintf("port %d [%s] pts=%d media=%d", port, kind, f.PresentationTime, f.MediaTime)
	if t.colored {
		line = t.styles[port].Render(line)
	}
	fmt.Println(line)
}

func (t *timeline) totalEmitted() string {
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return strconv.Itoa(total)
}
