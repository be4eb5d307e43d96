// Package worker исполняет фоновые задачи конвейера с ограниченной параллельностью.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrPoolClosed возвращается Submit после начала остановки пула
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task - фоновая задача. Получает собственный контекст с таймаутом,
// не связанный с контекстом запроса.
type Task func(ctx context.Context) error

// Pool ограничивает число одновременно выполняемых задач семафором.
// Submit никогда не блокирует вызывающего.
type Pool struct {
	sem     chan struct{}
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewPool(concurrency int, timeout time.Duration, log *slog.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:     make(chan struct{}, concurrency),
		timeout: timeout,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Submit ставит задачу в очередь и сразу возвращается.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	go p.run(name, task)
	return nil
}

func (p *Pool) run(name string, task Task) {
	defer p.wg.Done()

	select {
	case p.sem <- struct{}{}:
	case <-p.baseCtx.Done():
		p.log.Warn("background task dropped on shutdown", "task", name)
		return
	}
	defer func() { <-p.sem }()

	ctx, cancel := context.WithTimeout(p.baseCtx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.safeRun(ctx, task)
	if err != nil {
		p.log.Error("background task failed", "task", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	p.log.Debug("background task finished", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.log.Error("background task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return task(ctx)
}

// Wait блокируется до завершения всех принятых задач.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown перестает принимать задачи и ждет выполняющиеся.
// По истечении ctx задачи отменяются, ожидающие запуска отбрасываются.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
