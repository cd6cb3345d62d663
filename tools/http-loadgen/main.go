// http-loadgen is a tiny, dependency-free HTTP load generator tailored for the
// deck staging demo. It reuses HTTP connections (keep-alive) and supports
// concurrency so demo scripts run fast on Windows (Git Bash), Ubuntu (WSL),
// and macOS without relying on external tools.
//
// Modes:
//   - edit:  hammer staged increments on one deck for one viewer
//   - churn: spread increments across many decks to exercise the registry
//
// In both modes -apply_every=K issues an apply after every K edits per
// worker, so the reconciler and the store see realistic commit traffic.
//
// Usage examples:
//
//	http-loadgen -base=http://127.0.0.1:8080 -mode=edit -deck=d1 -viewer=alice -n=5000 -c=16
//	http-loadgen -base=http://127.0.0.1:8080 -mode=churn -decks=50 -viewer=alice -n=8000 -c=16 -apply_every=100
//
// Notes:
//   - Edits go to POST /decks/{id}/items/{ref}/increment with the viewer in
//     the X-Viewer-Id header; applies go to POST /decks/{id}/apply.
//   - Prints a one-line summary with duration and approximate throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeEdit  modeType = "edit"
	modeChurn modeType = "churn"
)

func main() {
	var (
		base   = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host, e.g. http://127.0.0.1:8080")
		modeS  = flag.String("mode", string(modeEdit), "Mode: edit|churn")
		deck   = flag.String("deck", "d1", "Deck id for edit mode")
		deckN  = flag.Int("decks", 50, "Number of decks (d1..dN) to round-robin in churn mode")
		viewer = flag.String("viewer", "alice", "Viewer id sent in the X-Viewer-Id header")
		refN   = flag.Int("refs", 8, "Number of product refs (ref-1..ref-N) to cycle through")
		N      = flag.Int("n", 5000, "Total edit requests to send")
		conc   = flag.Int("c", 8, "Number of concurrent workers")
		// applyEvery=0 disables applies entirely.
		applyEvery = flag.Int("apply_every", 0, "Issue an apply after every K edits per worker (0 disables)")
		// Timeouts & transport tuning
		timeout    = flag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeEdit && m != modeChurn {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want edit|churn)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m == modeChurn && *deckN <= 0 {
		fmt.Fprintln(os.Stderr, "-decks must be > 0 in churn mode")
		os.Exit(2)
	}
	if *refN <= 0 {
		*refN = 1
	}

	baseURL := strings.TrimRight(*base, "/")

	// Configure HTTP client with connection reuse
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	post := func(u string) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		req.Header.Set("X-Viewer-Id", *viewer)
		resp, err := client.Do(req)
		if err == nil {
			// Drain and close body to enable connection reuse
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		} else {
			// Brief backoff on errors to avoid hot spinning
			time.Sleep(200 * time.Microsecond)
		}
	}

	start := time.Now()
	var done int64

	worker := func(id, count int) {
		defer atomic.AddInt64(&done, int64(count))
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			deckID := *deck
			if m == modeChurn {
				deckID = fmt.Sprintf("d%d", ((i+id)%*deckN)+1)
			}
			ref := fmt.Sprintf("ref-%d", ((i+id)%*refN)+1)
			post(fmt.Sprintf("%s/decks/%s/items/%s/increment", baseURL, deckID, ref))
			if *applyEvery > 0 && (i+1)%*applyEvery == 0 {
				post(fmt.Sprintf("%s/decks/%s/apply", baseURL, deckID))
			}
		}
	}

	// Split N across conc workers
	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s\n", m, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops)
}
