package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/framer/pkg/client"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/server"
	"github.com/vango-dev/framer/pkg/transport"
)

const (
	gib = int64(1024 * 1024 * 1024)
)

type profile struct {
	Name          string
	Clients       int
	Duration      time.Duration
	RPS           float64
	PayloadBytes  int
	ChunkBytes    int
	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:         "fast",
		Clients:      50,
		Duration:     10 * time.Second,
		RPS:          2,
		PayloadBytes: 64,
	},
	"standard": {
		Name:         "standard",
		Clients:      200,
		Duration:     30 * time.Second,
		RPS:          5,
		PayloadBytes: 256,
	},
	"split": {
		Name:         "split",
		Clients:      200,
		Duration:     30 * time.Second,
		RPS:          5,
		PayloadBytes: 256,
		ChunkBytes:   7,
	},
	"stress": {
		Name:          "stress",
		Clients:       500,
		Duration:      60 * time.Second,
		RPS:           10,
		PayloadBytes:  1024,
		ChunkBytes:    100,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	Profile        string
	Transport      string
	Clients        int
	Duration       time.Duration
	RPS            float64
	PayloadBytes   int
	ChunkBytes     int
	MaxProcs       int
	MemLimitBytes  int64
	JSONOutput     string
	RequestTimeout time.Duration
}

type benchCounters struct {
	requestsSent     atomic.Uint64
	requestsComplete atomic.Uint64
	requestBytes     atomic.Uint64
	replyBytes       atomic.Uint64
	chunksWritten    atomic.Uint64
}

type benchErrors struct {
	dialFailures    atomic.Uint64
	writeFailures   atomic.Uint64
	timeouts        atomic.Uint64
	payloadMismatch atomic.Uint64
	totalErrors     atomic.Uint64
}

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}

	debug.SetGCPercent(100)

	factory, err := framing.NewFactory()
	if err != nil {
		log.Fatalf("factory: %v", err)
	}

	srvCfg := server.DefaultConfig()
	srvCfg.ReadTimeout = 0
	srv := server.New(srvCfg, factory, server.Echo)

	addr, stop, err := startServer(srv, cfg.Transport)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Clients))
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, rtt)
			samplesMu.Unlock()
		}
	}()

	var counters benchCounters
	var errCounts benchErrors

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			if err := runClient(ctx, addr, clientID, cfg, factory, &counters, &errCounts, samplesCh); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildReport(cfg, elapsed, latencies, &counters, &errCounts, srv.Metrics(), before, after, beforeMetrics, afterMetrics)

	writeSummary(os.Stderr, report)
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		log.Fatalf("write json: %v", err)
	}
}

// startServer serves srv on a loopback listener for the chosen transport
// and returns the address clients dial.
func startServer(srv *server.Server, kind string) (string, func(), error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	if kind == "ws" {
		httpServer := &http.Server{Handler: srv.HTTPHandler()}
		go func() {
			_ = httpServer.Serve(ln)
		}()
		stop := func() {
			_ = httpServer.Shutdown(context.Background())
			_ = srv.Shutdown(context.Background())
		}
		return "ws://" + ln.Addr().String() + srv.Config().WebSocketPath, stop, nil
	}

	go func() {
		_ = srv.Serve(ln)
	}()
	stop := func() {
		_ = srv.Shutdown(context.Background())
	}
	return "tcp://" + ln.Addr().String(), stop, nil
}

func sampleBuffer(clients int) int {
	if clients < 1 {
		return 1024
	}
	buf := clients * 4
	if buf < 1024 {
		buf = 1024
	}
	return buf
}

func parseConfig() (benchConfig, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (benchConfig, error) {
	fs := flag.NewFlagSet("framer-bench", flag.ContinueOnError)
	profileFlag := fs.String("profile", "standard", "profile: fast|standard|split|stress")
	transportFlag := fs.String("transport", "tcp", "transport: tcp|ws")
	clientsFlag := fs.Int("clients", -1, "number of concurrent clients")
	durationFlag := fs.String("duration", "", "benchmark duration, e.g. 30s")
	rpsFlag := fs.Float64("rps", -1, "target requests/sec per client")
	payloadFlag := fs.Int("payload-bytes", -1, "payload bytes per request")
	chunkFlag := fs.Int("chunk-bytes", -1, "split each request into writes of this size (0 writes whole frames)")
	maxProcsFlag := fs.Int("max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	memLimitFlag := fs.String("mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	jsonFlag := fs.String("json", "-", "JSON output path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return benchConfig{}, err
	}

	name := strings.ToLower(strings.TrimSpace(*profileFlag))
	if name == "" {
		name = "standard"
	}

	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Transport:     strings.ToLower(strings.TrimSpace(*transportFlag)),
		Clients:       base.Clients,
		Duration:      base.Duration,
		RPS:           base.RPS,
		PayloadBytes:  base.PayloadBytes,
		ChunkBytes:    base.ChunkBytes,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		JSONOutput:    strings.TrimSpace(*jsonFlag),
	}

	if *clientsFlag != -1 {
		cfg.Clients = *clientsFlag
	}
	if *durationFlag != "" {
		d, err := time.ParseDuration(*durationFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -duration: %w", err)
		}
		cfg.Duration = d
	}
	if *rpsFlag != -1 {
		cfg.RPS = *rpsFlag
	}
	if *payloadFlag != -1 {
		cfg.PayloadBytes = *payloadFlag
	}
	if *chunkFlag != -1 {
		cfg.ChunkBytes = *chunkFlag
	}
	if *maxProcsFlag != -1 {
		cfg.MaxProcs = *maxProcsFlag
	}
	if *memLimitFlag != "" {
		limit, err := parseBytes(*memLimitFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -mem-limit: %w", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	if cfg.Transport != "tcp" && cfg.Transport != "ws" {
		return benchConfig{}, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.Clients <= 0 {
		return benchConfig{}, errors.New("-clients must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, errors.New("-duration must be > 0")
	}
	if cfg.RPS <= 0 {
		return benchConfig{}, errors.New("-rps must be > 0")
	}
	if cfg.PayloadBytes <= 0 || uint64(cfg.PayloadBytes) > protocol.DefaultLengthField.MaxLength() {
		return benchConfig{}, errors.New("-payload-bytes must be > 0 and fit a uint16 length")
	}
	if cfg.ChunkBytes < 0 {
		return benchConfig{}, errors.New("-chunk-bytes must be >= 0")
	}
	if cfg.MaxProcs < 0 {
		return benchConfig{}, errors.New("-max-procs must be >= 0")
	}
	if cfg.MemLimitBytes < 0 {
		return benchConfig{}, errors.New("-mem-limit must be >= 0")
	}

	cfg.RequestTimeout = requestTimeout(cfg.RPS)
	return cfg, nil
}

func requestTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	period := time.Duration(float64(time.Second) / rps)
	timeout := period * 10
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return timeout
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, errors.New("empty size")
	}

	var i int
	for i < len(s) {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	numPart := strings.TrimSpace(s[:i])
	suffix := strings.ToLower(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, err
	}

	multiplier := float64(1)
	switch suffix {
	case "", "b":
		multiplier = 1
	case "kb":
		multiplier = 1e3
	case "mb":
		multiplier = 1e6
	case "gb":
		multiplier = 1e9
	case "kib":
		multiplier = 1024
	case "mib":
		multiplier = 1024 * 1024
	case "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix %q", suffix)
	}

	return int64(value*multiplier + 0.5), nil
}

// splitConn writes each chunk as several smaller writes so the server has
// to reassemble frames across reads.
type splitConn struct {
	transport.Conn
	size   int
	writes *atomic.Uint64
}

func (c *splitConn) WriteChunk(b []byte) error {
	for len(b) > 0 {
		n := c.size
		if n > len(b) {
			n = len(b)
		}
		if err := c.Conn.WriteChunk(b[:n]); err != nil {
			return err
		}
		c.writes.Add(1)
		b = b[n:]
	}
	return nil
}

func dialClient(ctx context.Context, addr string, cfg benchConfig, factory *framing.Factory, counters *benchCounters) (*client.Client, error) {
	opts := []client.Option{
		client.WithFactory(factory),
		client.WithTimeout(cfg.RequestTimeout),
	}
	if cfg.ChunkBytes == 0 {
		return client.Dial(ctx, addr, opts...)
	}

	var conn transport.Conn
	if strings.HasPrefix(addr, "ws://") {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, err
		}
		conn = transport.NewWebSocket(ws)
	} else {
		var d net.Dialer
		nc, err := d.DialContext(ctx, "tcp", strings.TrimPrefix(addr, "tcp://"))
		if err != nil {
			return nil, err
		}
		conn = transport.NewStream(nc, 0)
	}
	return client.New(&splitConn{Conn: conn, size: cfg.ChunkBytes, writes: &counters.chunksWritten}, opts...)
}

func runClient(
	ctx context.Context,
	addr string,
	clientID int,
	cfg benchConfig,
	factory *framing.Factory,
	counters *benchCounters,
	errCounts *benchErrors,
	samples chan<- time.Duration,
) error {
	c, err := dialClient(ctx, addr, cfg, factory, counters)
	if err != nil {
		errCounts.dialFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	period := time.Duration(float64(time.Second) / cfg.RPS)
	layout := c.Layout()
	header := make([]byte, layout.HeaderOffset)
	var seq uint16

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		binary.BigEndian.PutUint16(header, seq)
		payload := makePayload(clientID, uint64(seq), cfg.PayloadBytes)

		start := time.Now()
		counters.requestsSent.Add(1)
		counters.requestBytes.Add(uint64(layout.FrameSize(len(payload))))

		reply, err := c.Request(ctx, header, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, client.ErrClosed) || transport.IsClosed(err) {
				errCounts.writeFailures.Add(1)
			} else {
				errCounts.timeouts.Add(1)
			}
			return fmt.Errorf("request: %w", err)
		}

		got, err := reply.Payload(layout)
		if err != nil || string(got) != string(payload) {
			errCounts.payloadMismatch.Add(1)
			return fmt.Errorf("reply payload mismatch")
		}

		rtt := time.Since(start)
		counters.requestsComplete.Add(1)
		counters.replyBytes.Add(uint64(len(reply)))
		samples <- rtt

		elapsed := time.Since(start)
		if sleep := period - elapsed; sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func makePayload(clientID int, seq uint64, size int) []byte {
	if size <= 0 {
		return nil
	}
	seed := (uint64(clientID) << 32) ^ seq
	base := strings.ToLower(strconv.FormatUint(seed, 36))
	if len(base) >= size {
		return []byte(base[len(base)-size:])
	}
	return []byte(base + strings.Repeat("x", size-len(base)))
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64

	heapAllocsBytes   uint64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:bytes"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		if s.Value.Kind() == metrics.KindBad {
			continue
		}
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:bytes":
			out.heapAllocsBytes = s.Value.Uint64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Framing    framingInfo    `json:"framing"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	GitCommit string `json:"git_commit,omitempty"`
}

type workloadInfo struct {
	Profile          string  `json:"profile"`
	Transport        string  `json:"transport"`
	Clients          int     `json:"clients"`
	DurationMS       int64   `json:"duration_ms"`
	RPSPerClient     float64 `json:"rps_per_client"`
	PayloadBytes     int     `json:"payload_bytes"`
	ChunkBytes       int     `json:"chunk_bytes"`
	MaxProcs         int     `json:"max_procs"`
	MemLimitBytes    int64   `json:"mem_limit_bytes"`
	RequestTimeoutMS int64   `json:"request_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	RequestsTotal        uint64  `json:"requests_total"`
	RequestsPerSec       float64 `json:"requests_per_sec"`
	RequestsPerSecClient float64 `json:"requests_per_sec_per_client"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	HeapLiveMB    float64 `json:"heap_live_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	PauseAvgMS    float64 `json:"pause_avg_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	AllocsObjects uint64  `json:"allocs_objects"`
}

type framingInfo struct {
	RequestBytesTotal uint64  `json:"request_bytes_total"`
	ReplyBytesTotal   uint64  `json:"reply_bytes_total"`
	ChunksWritten     uint64  `json:"chunks_written"`
	ServerFrames      int64   `json:"server_frames"`
	ServerBytes       int64   `json:"server_bytes"`
	ChunksPerFrame    float64 `json:"chunks_per_frame"`
	SessionsTotal     int64   `json:"sessions_total"`
	HandlerPanics     int64   `json:"handler_panics"`
}

type errorInfo struct {
	TotalErrors     uint64 `json:"total_errors"`
	DialFailures    uint64 `json:"dial_failures"`
	WriteFailures   uint64 `json:"write_failures"`
	Timeouts        uint64 `json:"timeouts"`
	PayloadMismatch uint64 `json:"payload_mismatch"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errors *benchErrors,
	srvMetrics *server.ServerMetrics,
	before runtime.MemStats,
	after runtime.MemStats,
	beforeMetrics runtimeMetricsSnapshot,
	afterMetrics runtimeMetricsSnapshot,
) benchReport {
	requestsTotal := counters.requestsComplete.Load()

	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	requestsPerSec := float64(requestsTotal) / elapsedSeconds
	requestsPerSecClient := requestsPerSec / float64(cfg.Clients)

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	chunks := counters.chunksWritten.Load()
	chunksPerFrame := 0.0
	if srvMetrics.FramesReceived > 0 && chunks > 0 {
		chunksPerFrame = float64(chunks) / float64(srvMetrics.FramesReceived)
	}

	pauseTotal := time.Duration(after.PauseTotalNs - before.PauseTotalNs)

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			GitCommit: gitCommit(),
		},
		Workload: workloadInfo{
			Profile:          cfg.Profile,
			Transport:        cfg.Transport,
			Clients:          cfg.Clients,
			DurationMS:       cfg.Duration.Milliseconds(),
			RPSPerClient:     cfg.RPS,
			PayloadBytes:     cfg.PayloadBytes,
			ChunkBytes:       cfg.ChunkBytes,
			MaxProcs:         cfg.MaxProcs,
			MemLimitBytes:    cfg.MemLimitBytes,
			RequestTimeoutMS: cfg.RequestTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			RequestsTotal:        requestsTotal,
			RequestsPerSec:       requestsPerSec,
			RequestsPerSecClient: requestsPerSecClient,
		},
		GC: gcInfo{
			AllocMB:       float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:    float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  ms(pauseTotal),
			PauseAvgMS:    ms(avgPause(after, before)),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
			AllocsObjects: afterMetrics.heapAllocsObjects - beforeMetrics.heapAllocsObjects,
		},
		Framing: framingInfo{
			RequestBytesTotal: counters.requestBytes.Load(),
			ReplyBytesTotal:   counters.replyBytes.Load(),
			ChunksWritten:     chunks,
			ServerFrames:      srvMetrics.FramesReceived,
			ServerBytes:       srvMetrics.BytesReceived,
			ChunksPerFrame:    chunksPerFrame,
			SessionsTotal:     srvMetrics.TotalSessions,
			HandlerPanics:     srvMetrics.HandlerPanics,
		},
		Errors: errorInfo{
			TotalErrors:     errors.totalErrors.Load(),
			DialFailures:    errors.dialFailures.Load(),
			WriteFailures:   errors.writeFailures.Load(),
			Timeouts:        errors.timeouts.Load(),
			PayloadMismatch: errors.payloadMismatch.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== Framer Load Benchmark ===")
	fmt.Fprintf(w, "Profile: %s (%s)\n", report.Workload.Profile, report.Workload.Transport)
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f requests/s\n", report.Workload.RPSPerClient)
	fmt.Fprintf(w, "Payload bytes: %d\n", report.Workload.PayloadBytes)
	if report.Workload.ChunkBytes > 0 {
		fmt.Fprintf(w, "Write size: %d bytes\n", report.Workload.ChunkBytes)
	}
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total requests: %d\n", report.Throughput.RequestsTotal)
	fmt.Fprintf(w, "Throughput: %.1f requests/s (%.2f per client)\n", report.Throughput.RequestsPerSec, report.Throughput.RequestsPerSecClient)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (client encode -> server de-frame -> echo -> client match):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Framing:")
	fmt.Fprintf(w, "  server frames: %d\n", report.Framing.ServerFrames)
	fmt.Fprintf(w, "  server bytes:  %d\n", report.Framing.ServerBytes)
	if report.Framing.ChunksWritten > 0 {
		fmt.Fprintf(w, "  writes/frame:  %.2f\n", report.Framing.ChunksPerFrame)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
	fmt.Fprintf(w, "  gc_cpu:    %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func gitCommit() string {
	if val := strings.TrimSpace(os.Getenv("FRAMER_GIT_COMMIT")); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv("GIT_COMMIT")); val != "" {
		return val
	}
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
