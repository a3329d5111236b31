package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"go.velmi.io/memprobe/cmd/memprobe/api"
	"go.velmi.io/memprobe/cmd/memprobe/mem"
	"go.velmi.io/memprobe/cmd/memprobe/storage"
	"go.velmi.io/memprobe/cmd/memprobe/timer"
)

var (
	workloads = flag.String("w", "fill", "Comma-separated workloads to run (name or name:size, e.g. fill:1MiB,parse:256KiB)")
	trialTime = flag.Duration("d", 2*time.Second, "Wall time to spend repeating each workload")

	// Web mode flags
	record        = flag.Bool("record", false, "Persist per-trial results to a session store")
	webMode       = flag.Bool("web", false, "Enable web mode with API server and WebSocket (implies -record)")
	webPort       = flag.Int("web-port", 8080, "Port for web API server")
	storageFormat = flag.String("storage-format", "jsonl", "Storage format: jsonl, binary or sqlite")
	storageDir    = flag.String("storage-dir", "./sessions", "Directory for storing session data")

	silent                = flag.Bool("s", false, "Enable silent mode")
	metricFilePrefix      = flag.String("mfp", "", "Prefix for metric file name")
	metricFileNoTimestamp = flag.Bool("mft", false, "Do not include timestamp in metric file name")

	// Batch configuration
	batchSize          = flag.Int("batch-size", 100, "Number of results to batch before writing to storage")
	batchFlushInterval = flag.Duration("batch-flush-interval", 100*time.Millisecond, "Maximum time to wait before flushing a batch")
)

const statsInterval = 1000 * time.Millisecond

var (
	// Global storage and API server for recording modes
	resultStore storage.ResultStore
	apiServer   *api.Server
)

// trialCounts tracks completed trials by workload type
type trialCounts struct {
	fill  atomic.Uint64
	read  atomic.Uint64
	parse atomic.Uint64
	alloc atomic.Uint64
}

func (c *trialCounts) add(typ storage.WorkloadType) {
	switch typ {
	case storage.WorkloadFill:
		c.fill.Add(1)
	case storage.WorkloadRead:
		c.read.Add(1)
	case storage.WorkloadParse:
		c.parse.Add(1)
	case storage.WorkloadAlloc:
		c.alloc.Add(1)
	}
}

func main() {
	log.SetPrefix("memprobe: ")
	log.SetFlags(log.Ltime)

	flag.Parse()
	specs := validateFlags()

	if *webMode {
		*record = true
	}

	log.Printf("Timer source: %s @ %d Hz", timer.Name(), timer.Frequency())

	// Initialize recording if enabled
	if *record {
		manager, err := storage.NewManager(*storageDir)
		must(err, "creating storage manager")

		session := &storage.Session{
			ID:          uuid.New().String(),
			StartTime:   time.Now(),
			TimerSource: timer.Name(),
			TimerFreqHz: timer.Frequency(),
		}

		resultStore, err = manager.CreateSession(context.Background(), session, *storageFormat)
		must(err, "creating result store")
		defer resultStore.Close()

		if *webMode {
			apiServer = api.NewServer(manager, *webPort)
			go func() {
				if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("API server error: %v", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := apiServer.Stop(ctx); err != nil {
					log.Printf("Error stopping API server: %v", err)
				}
			}()

			log.Printf("Web mode enabled: http://localhost:%d", *webPort)
		}

		// Update session on exit
		defer func() {
			endTime := time.Now()
			session.EndTime = &endTime
			session.ResultCount = resultStore.GetSession().ResultCount
			if err := resultStore.UpdateSession(session); err != nil {
				log.Printf("Error updating session: %v", err)
			}
		}()

		log.Printf("Session ID: %s", session.ID)
		log.Printf("Storage format: %s", *storageFormat)
	}

	// Subscribe to signals for terminating the program.
	stopper := make(chan os.Signal, 1)
	signal.Notify(stopper, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-stopper
		log.Printf("[Main] Received stop signal, finishing current trial")
		cancel()
	}()

	resultCh := make(chan *storage.Result, 10_000)

	var trialCount atomic.Uint64
	var byteCount atomic.Uint64
	var faultCount atomic.Uint64

	var trialTicksSum atomic.Int64
	var trialTicksCount atomic.Int64

	var batchFlushLatencySum atomic.Int64
	var batchFlushLatencyCount atomic.Int64

	var trialCountsByType trialCounts

	// Metrics
	metricTPS := make([]float64, 0, 1_000)
	metricTPT := make([]float64, 0, 1_000)
	metricPND := make([]float64, 0, 1_000)
	metricBFL := make([]float64, 0, 1_000)
	metricTRL := make([]float64, 0, 1_000)
	metricPGF := make([]float64, 0, 1_000)
	metricTimestamps := make([]float64, 0, 1_000)

	workloadsDone := make(chan struct{})

	var writeWg sync.WaitGroup
	writeWg.Add(1)

	go func() {
		defer func() {
			writeWg.Done()
			log.Printf("[Writer] I'm done!")
		}()
		log.Printf("[Writer] I'm alive!")

		writeResults(resultCh, *batchSize, *batchFlushInterval, func(batch []*storage.Result) {
			batchStart := time.Now()

			if resultStore != nil {
				if err := resultStore.WriteBatch(batch); err != nil {
					log.Printf("[Writer] Failed to write batch to storage: %v", err)
				}
			}
			if apiServer != nil {
				apiServer.BroadcastBatch(batch)
			}

			batchFlushLatencySum.Add(time.Since(batchStart).Nanoseconds())
			batchFlushLatencyCount.Add(1)
		}, func(result *storage.Result) {
			if apiServer != nil {
				apiServer.ObserveTrial(result)
			}
		})
	}()

	var statsWg sync.WaitGroup
	statsWg.Add(1)
	go func(done chan struct{}) {
		defer statsWg.Done()
		t := time.NewTicker(statsInterval)
		defer t.Stop()

		for {
			select {
			case <-done:
				return
			case <-t.C:
				trials := trialCount.Swap(0)
				bytesMoved := byteCount.Swap(0)
				faults := faultCount.Swap(0)

				tps := float64(trials) * float64(time.Second) / float64(statsInterval)
				tpt := float64(bytesMoved) * float64(time.Second) / float64(statsInterval)
				pending := float64(len(resultCh))

				if !*silent {
					log.Printf("[Stats] TPS: %.2f trials/sec", tps)
					log.Printf("[Stats] TPT: %s/sec", humanize.IBytes(uint64(tpt)))
					log.Printf("[Stats] PND: %d results queued", int64(pending))
				}

				var trialNs float64
				trlCnt := trialTicksCount.Load()
				if trlCnt != 0 {
					trlAvg := uint64(trialTicksSum.Load() / trlCnt)
					trialNs = float64(timer.ToDuration(trlAvg).Nanoseconds())
					if !*silent {
						log.Printf("[Stats] TRL: %d ns/trial", int64(trialNs))
					}
				} else if !*silent {
					log.Printf("[Stats] TRL: NaN")
				}

				var batchFlushLatency float64
				bflCnt := batchFlushLatencyCount.Load()
				if bflCnt != 0 {
					bflAvg := batchFlushLatencySum.Load() / bflCnt
					batchFlushLatency = float64(bflAvg)
					if !*silent {
						log.Printf("[Stats] BFL: %d ns/batch", bflAvg)
					}
				} else if !*silent {
					log.Printf("[Stats] BFL: NaN")
				}

				var faultsPerTrial float64
				if trials != 0 {
					faultsPerTrial = float64(faults) / float64(trials)
				}
				if !*silent {
					log.Printf("[Stats] PGF: %.2f faults/trial\n\n", faultsPerTrial)
				}

				metricTPS = append(metricTPS, tps)
				metricTPT = append(metricTPT, tpt)
				metricPND = append(metricPND, pending)
				metricBFL = append(metricBFL, batchFlushLatency)
				metricTRL = append(metricTRL, trialNs)
				metricPGF = append(metricPGF, faultsPerTrial)
				metricTimestamps = append(metricTimestamps, float64(time.Now().UTC().UnixNano()))

				if apiServer != nil {
					apiServer.UpdateMetrics(&api.Metrics{
						TPS:        tps,
						Throughput: tpt,
						Pending:    int64(pending),
						FlushNs:    batchFlushLatency,
						TrialNs:    trialNs,
						PageFaults: faultsPerTrial,
					})
				}
			}
		}
	}(workloadsDone)

	emit := func(r *storage.Result) {
		trialCount.Add(1)
		byteCount.Add(r.Bytes)
		faultCount.Add(r.PageFaults)
		trialTicksSum.Add(int64(r.Ticks))
		trialTicksCount.Add(1)
		trialCountsByType.add(r.Workload)

		select {
		case resultCh <- r:
		default:
			log.Printf("[Main] Result channel full, dropping trial record")
		}
	}

	out := io.Writer(os.Stdout)
	if *silent {
		out = io.Discard
	}

	for _, ws := range specs {
		if ctx.Err() != nil {
			break
		}

		log.Printf("Running workload %s (%s) for %v",
			storage.WorkloadName(ws.typ), humanize.IBytes(ws.size), *trialTime)
		if err := runWorkload(ctx, ws, *trialTime, out, emit); err != nil {
			log.Printf("Workload %s failed: %v", storage.WorkloadName(ws.typ), err)
			break
		}
	}

	close(workloadsDone)
	close(resultCh)
	writeWg.Wait()
	// The stats goroutine appends to the metric series; it must be gone
	// before saveMetrics reads them.
	statsWg.Wait()
	log.Printf("All workloads are done")

	saveMetrics(metricTPS, metricTPT, metricPND, metricBFL, metricTRL, metricPGF, metricTimestamps, &trialCountsByType)
}

func must(err error, op string) {
	if err != nil {
		log.Fatalf("%s: %v", op, err)
	}
}

// writeResults drains resultCh into batches, handing each batch to flush when
// it fills up or flushInterval elapses. The interval timer is re-armed even
// when it fires on an empty batch, so a slow trickle of results still reaches
// the store within one interval of being produced. observe sees every result
// as it arrives, before batching.
func writeResults(resultCh <-chan *storage.Result, batchSize int, flushInterval time.Duration, flush func([]*storage.Result), observe func(*storage.Result)) {
	batch := make([]*storage.Result, 0, batchSize)
	flushTimer := time.NewTimer(flushInterval)
	defer flushTimer.Stop()

	flushBatch := func() {
		flushTimer.Reset(flushInterval)
		if len(batch) == 0 {
			return
		}
		flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-flushTimer.C:
			flushBatch()
		case result, ok := <-resultCh: // ', ok' idiom is used to prevent race condition
			if !ok {
				if len(batch) > 0 {
					flush(batch)
				}
				return
			}

			observe(result)
			batch = append(batch, result)
			if len(batch) >= batchSize {
				flushBatch()
			}
		}
	}
}

// parseWorkloads parses a comma-separated workload list. Each entry is a
// workload name with an optional size suffix, e.g. "fill:64MiB". Sizes accept
// humanized forms (1MiB, 4 kB, 1048576).
func parseWorkloads(spec string) ([]workloadSpec, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("no workloads given")
	}

	var out []workloadSpec
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) > 2 {
			return nil, fmt.Errorf("invalid workload %q, expected name or name:size", entry)
		}

		name := strings.TrimSpace(parts[0])
		typ, ok := storage.ParseWorkload(name)
		if !ok {
			return nil, fmt.Errorf("unknown workload %q", name)
		}

		size := uint64(mem.FillSize)
		if len(parts) == 2 {
			sz, err := humanize.ParseBytes(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid size for workload %q: %v", name, err)
			}
			if sz == 0 {
				return nil, fmt.Errorf("size for workload %q must be positive", name)
			}
			size = sz
		}

		out = append(out, workloadSpec{typ: typ, size: size})
	}
	return out, nil
}

func validateFlags() []workloadSpec {
	specs, err := parseWorkloads(*workloads)
	if err != nil {
		log.Fatalf("Failed to parse -w: %v", err)
	}

	if *trialTime <= 0 {
		log.Fatal("-d must be positive")
	}

	if *batchSize <= 0 {
		log.Fatal("-batch-size must be positive")
	}

	if *batchFlushInterval <= 0 {
		log.Fatal("-batch-flush-interval must be positive")
	}

	switch *storageFormat {
	case "jsonl", "binary", "sqlite":
	default:
		log.Fatalf("unknown -storage-format %q", *storageFormat)
	}

	return specs
}

func saveMetrics(
	metricTPS []float64,
	metricTPT []float64,
	metricPND []float64,
	metricBFL []float64,
	metricTRL []float64,
	metricPGF []float64,
	metricTimestamps []float64,
	trialCountsByType *trialCounts,
) {
	metrics := struct {
		Tps         []float64         `json:"tps"`
		Tpt         []float64         `json:"tpt"`
		Pnd         []float64         `json:"pnd"`
		Bfl         []float64         `json:"bfl"`
		Trl         []float64         `json:"trl"`
		Pgf         []float64         `json:"pgf"`
		Ts          []float64         `json:"ts"`
		TrialCounts map[string]uint64 `json:"trial_counts"`
	}{
		Tps: metricTPS,
		Tpt: metricTPT,
		Pnd: metricPND,
		Bfl: metricBFL,
		Trl: metricTRL,
		Pgf: metricPGF,
		Ts:  metricTimestamps,
		TrialCounts: map[string]uint64{
			storage.WorkloadName(storage.WorkloadFill):  trialCountsByType.fill.Load(),
			storage.WorkloadName(storage.WorkloadRead):  trialCountsByType.read.Load(),
			storage.WorkloadName(storage.WorkloadParse): trialCountsByType.parse.Load(),
			storage.WorkloadName(storage.WorkloadAlloc): trialCountsByType.alloc.Load(),
		},
	}
	b, err := json.MarshalIndent(metrics, "", "  ")
	must(err, "marshaling metric data")
	prefix := *metricFilePrefix
	if prefix != "" {
		prefix = "_" + prefix
	}
	filename := "metrics"
	if !*metricFileNoTimestamp {
		filename += "_" + time.Now().UTC().Format("2006-01-02-15-04-05")
	}
	filename += prefix + ".json"
	err = os.WriteFile(
		filename,
		b, 0666,
	)
	must(err, "writing metrics")
}
