package worker

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/app/models"
	"github.com/docuflow/docuflow/app/repository"
	"github.com/docuflow/docuflow/internal/pkg/contract"
	"github.com/docuflow/docuflow/internal/pkg/flatten"
	"github.com/docuflow/docuflow/internal/pkg/mapper"
	"github.com/docuflow/docuflow/internal/pkg/migration"
	"github.com/docuflow/docuflow/internal/pkg/statistics"
)

// Options carries the process-boundary tuning knobs. Partition/Partitions
// split the id space across processes; Workers splits a process's share
// further across in-process workers. Both splits are modulo-based, so the
// union of all workers' id sets is the full source set with pairwise-empty
// intersections.
type Options struct {
	Partition  int
	Partitions int
	Workers    int
	BatchSize  int
	QueueSize  int
	PageSize   int
	MinID      uint64
	MaxID      uint64
}

// Coordinator runs the parse -> filter -> map -> commit pipeline over the
// process's share of unprocessed documents. Workers share nothing mutable:
// each owns its parser, mapper, repositories, commit queue and database
// session; only the immutable contract is shared. Cross-run correctness
// rests on the ledger's database constraints, not on in-process locks.
type Coordinator struct {
	contract *contract.Contract
	db       *gorm.DB
	opts     Options
	runID    string

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	workers []*pipelineWorker
}

func NewCoordinator(db *gorm.DB, c *contract.Contract, opts Options) *Coordinator {
	if opts.Partitions <= 0 {
		opts.Partitions = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Coordinator{
		contract: c,
		db:       db,
		opts:     opts,
		runID:    uuid.NewString(),
		stopCh:   make(chan struct{}),
	}
}

// RunID identifies this run in logs and statistics keys.
func (c *Coordinator) RunID() string { return c.runID }

// Start launches the workers. Each claims the disjoint modulo partition
// (Partition*Workers + i) of (Partitions*Workers).
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})

	log.Infof("[Coordinator] run %s: starting %d workers (process partition %d/%d, product line %s)",
		c.runID, c.opts.Workers, c.opts.Partition, c.opts.Partitions, c.contract.ProductLine)

	for i := 0; i < c.opts.Workers; i++ {
		w := c.newWorker(i, workerPartition(c.opts, i))
		c.workers = append(c.workers, w)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			w.run()
		}()
	}
}

// Stop interrupts the run between documents. An in-flight commit always
// runs to completion or full rollback first.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	log.Info("[Coordinator] stopping workers...")
	c.wg.Wait()
	log.Info("[Coordinator] all workers stopped")
}

// Wait blocks until every worker has drained its partition.
func (c *Coordinator) Wait() {
	c.wg.Wait()
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// QueueDepth sums the commit queues, for the status endpoint. The status
// handler runs on its own goroutine and may call this while Start is still
// appending workers, so the slice read takes the same lock.
func (c *Coordinator) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	depth := 0
	for _, w := range c.workers {
		depth += w.queue.Depth()
	}
	return depth
}

// workerPartition is the effective modulo partition of in-process worker i:
// the process's share of the id space, subdivided once more across workers.
// Across all processes and workers the effective indices enumerate
// 0..Partitions*Workers-1 exactly once.
func workerPartition(opts Options, i int) repository.Partition {
	return repository.Partition{
		Index: opts.Partition*opts.Workers + i,
		Count: opts.Partitions * opts.Workers,
	}
}

func (c *Coordinator) newWorker(index int, part repository.Partition) *pipelineWorker {
	// A fresh session per worker keeps prepared state and statement
	// building isolated even though the underlying pool is shared.
	session := c.db.Session(&gorm.Session{NewDB: true})
	docs := repository.NewDocumentRepository(session)

	return &pipelineWorker{
		index:   index,
		runID:   c.runID,
		part:    part,
		parser:  flatten.NewXMLParser(),
		mapper:  mapper.New(c.contract),
		engine:  migration.NewEngine(session, c.contract, c.opts.BatchSize),
		ledger:  repository.NewLedgerRepository(session),
		scanner: migration.NewScanner(docs, part, c.opts.PageSize, c.opts.MinID, c.opts.MaxID),
		queue:   NewCommitQueue(c.opts.QueueSize),
		stopCh:  c.stopCh,
		primary: c.contract.PrimaryTable(),
		selects: c.contract.ElementNames(),
	}
}

// pipelineWorker owns one partition end to end.
type pipelineWorker struct {
	index   int
	runID   string
	part    repository.Partition
	parser  flatten.Parser
	mapper  *mapper.Mapper
	engine  *migration.Engine
	ledger  repository.LedgerRepository
	scanner *migration.Scanner
	queue   *CommitQueue
	stopCh  chan struct{}
	primary string
	selects []string
}

func (w *pipelineWorker) run() {
	log.Infof("[Worker %d] partition %d/%d starting", w.index, w.part.Index, w.part.Count)

	var committerWg sync.WaitGroup
	committerWg.Add(1)
	go func() {
		defer committerWg.Done()
		w.commitLoop()
	}()

	w.mapLoop()

	// No more documents: let the committer drain what is queued.
	w.queue.Close()
	committerWg.Wait()
	log.Infof("[Worker %d] partition %d/%d done", w.index, w.part.Index, w.part.Count)
}

// mapLoop is the producer: scan, parse, filter, map, enqueue. It checks for
// interruption only between documents.
func (w *pipelineWorker) mapLoop() {
	for {
		page, err := w.scanner.Next()
		if err != nil {
			log.Errorf("[Worker %d] scan failed at cursor %d: %v", w.index, w.scanner.Cursor(), err)
			return
		}
		if len(page) == 0 {
			return
		}

		for i := range page {
			select {
			case <-w.stopCh:
				log.Infof("[Worker %d] interrupted between documents", w.index)
				return
			default:
			}
			w.mapDocument(&page[i])
		}
	}
}

// mapDocument runs the CPU side of the pipeline for one document and hands
// the result to the committer. Rejections and parse failures skip the
// document with a failed ledger row; the run continues.
func (w *pipelineWorker) mapDocument(doc *models.SourceDocument) {
	ctx, err := w.parser.ParseSelective(doc.Payload, w.selects)
	if err != nil {
		log.Warnf("[Worker %d] document %d unparsable: %v", w.index, doc.ID, err)
		w.ledgerFailure(doc.ID, err.Error())
		statistics.IncSkipped(w.runID)
		return
	}

	records, err := w.mapper.MapDocument(doc.ID, ctx)
	if err != nil {
		var rejected *mapper.RejectedError
		if errors.As(err, &rejected) {
			log.Warnf("[Worker %d] %v", w.index, rejected)
			w.ledgerFailure(doc.ID, rejected.Reason)
			statistics.IncSkipped(w.runID)
			return
		}
		log.Errorf("[Worker %d] document %d mapping failed: %v", w.index, doc.ID, err)
		w.ledgerFailure(doc.ID, err.Error())
		statistics.IncSkipped(w.runID)
		return
	}

	// Blocks when the committer is behind; that is the backpressure bound.
	w.queue.Enqueue(records)
}

// commitLoop is the consumer: it drains the queue and invokes the migration
// engine. Commit failures are ledgered and counted, never retried here.
func (w *pipelineWorker) commitLoop() {
	for doc := range w.queue.Drain() {
		err := w.engine.CommitDocument(doc)
		if err == nil {
			statistics.IncProcessed(w.runID)
			statistics.IncRows(w.runID, int64(doc.RowCount()))
			continue
		}

		var conflict *migration.ConflictError
		if errors.As(err, &conflict) {
			log.Infof("[Worker %d] %v (skipping)", w.index, conflict)
		} else {
			log.Errorf("[Worker %d] %v", w.index, err)
		}
		w.ledgerFailure(doc.DocumentID, err.Error())
		statistics.IncFailed(w.runID)
	}
}

func (w *pipelineWorker) ledgerFailure(documentID uint64, message string) {
	if err := w.ledger.RecordFailure(documentID, w.primary, message); err != nil {
		log.Errorf("[Worker %d] ledger write for document %d failed: %v", w.index, documentID, err)
	}
}
