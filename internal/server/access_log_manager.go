package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AccessLogManager batches access log entries and writes them from a small
// worker pool so request handling never waits on the log sink.
type AccessLogManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	logger      *zap.Logger

	inputChan  chan AccessLogEntry
	batchChan  chan []AccessLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAccessLogManager(workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *AccessLogManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessLogManager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		logger:      logger.Named("access"),
		inputChan:   make(chan AccessLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AccessLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AccessLogManager) Start(ctx context.Context) {
	m.logger.Debug("starting access log manager", zap.Int("workers", m.workerCount))
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}

	go m.monitorShutdown(ctx)
}

func (m *AccessLogManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Debug("access log manager stopped")
		case <-ctx.Done():
			m.logger.Warn("access log manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AccessLogManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

// LogEntry queues entry. Entries that cannot be queued are written directly.
func (m *AccessLogManager) LogEntry(ctx context.Context, entry AccessLogEntry) {
	m.updatePendingCount(1)

	select {
	case <-m.shutdownCh:
		m.emergencyLog(entry)
		return
	default:
	}

	select {
	case m.inputChan <- entry:
	case <-m.shutdownCh:
		m.emergencyLog(entry)
	case <-ctx.Done():
		m.emergencyLog(entry)
	}
}

// Pending reports entries accepted but not yet written.
func (m *AccessLogManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AccessLogManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AccessLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timeoutC = nil
	}

	defer func() {
		stopTimer()
		// Whatever is still queued goes out with the last batch.
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
				continue
			default:
			}
			break
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				stopTimer()
				m.dispatchBatch(batch)
				batch = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			timeoutC = nil
			m.dispatchBatch(batch)
			batch = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AccessLogManager) dispatchBatch(batch []AccessLogEntry) {
	batchCopy := make([]AccessLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		m.writeBatch(-1, batchCopy)
	}
}

func (m *AccessLogManager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case batch, ok := <-m.batchChan:
			if !ok {
				return
			}
			m.writeBatch(id, batch)
		case <-ctx.Done():
			for batch := range m.batchChan {
				m.writeBatch(id, batch)
			}
			return
		}
	}
}

func (m *AccessLogManager) emergencyLog(entry AccessLogEntry) {
	m.logger.Warn("access log written outside the worker pool", entry.field())
	m.updatePendingCount(-1)
}

func (m *AccessLogManager) writeBatch(workerID int, batch []AccessLogEntry) {
	for _, entry := range batch {
		m.logger.Info("request served", zap.Int("worker", workerID), entry.field())
	}
	m.updatePendingCount(-len(batch))
}

func (m *AccessLogManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
