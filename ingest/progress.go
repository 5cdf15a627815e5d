package ingest

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/docrag/ai"
)

// ProgressTracker reports batch progress of an ingestion run.
type ProgressTracker struct {
	writer    io.Writer
	batches   int
	chunks    int
	sent      int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stdout)
// chunks: total number of chunks to send
// batchSize: number of chunks per batch
func NewProgressTracker(writer io.Writer, chunks, batchSize int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	batches := 0
	if batchSize > 0 {
		batches = (chunks + batchSize - 1) / batchSize
	}
	return &ProgressTracker{
		writer:  writer,
		batches: batches,
		chunks:  chunks,
	}
}

// Batches returns the number of batches the run is split into.
func (p *ProgressTracker) Batches() int {
	return p.batches
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.sent = 0
}

// BeginBatch announces batch number n (1-based).
func (p *ProgressTracker) BeginBatch(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	fmt.Fprintf(p.writer, "Enviando bloco %d de %d...\n", n, p.batches)
}

// Retrying announces a wait before the current batch is retried.
// Throttling and temporary outages are worded differently.
func (p *ProgressTracker) Retrying(delay time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	delay = delay.Round(time.Millisecond)
	if ai.IsThrottled(err) {
		fmt.Fprintf(p.writer, "Limite de taxa atingido. Aguardando %s...\n", delay)
		return
	}
	fmt.Fprintf(p.writer, "Serviço temporariamente indisponível. Aguardando %s...\n", delay)
}

// Sent records that size chunks of the current batch were stored and
// returns the number stored so far.
func (p *ProgressTracker) Sent(size int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	p.sent = min(p.sent+size, p.chunks)
	return p.sent
}

// Skipped reports that the document did not change since the last run.
func (p *ProgressTracker) Skipped() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.writer, "Documento sem alterações; ingestão ignorada.")
}

// Finish marks the run as complete.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	fmt.Fprintln(p.writer, "Processamento concluído com sucesso!")
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}
