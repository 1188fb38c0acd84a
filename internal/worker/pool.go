package worker

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
)

// Pool runs indexed tasks on a fixed number of goroutines. A failing or panicking
// task never cancels its siblings.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func (p *Pool) Size() int {
	return p.workerCount
}

// Run calls fn once for every index in [0, n) and returns when all calls are done.
// Indices are handed out in ascending order.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, workerID, index int)) {
	if n <= 0 {
		return
	}

	workers := p.workerCount
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, jobs, fn)
		}(i)
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int, jobs <-chan int, fn func(ctx context.Context, workerID, index int)) {
	for index := range jobs {
		p.runTask(ctx, id, index, fn)
	}
}

func (p *Pool) runTask(ctx context.Context, id, index int, fn func(ctx context.Context, workerID, index int)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: task %d panicked: %v\n%s", id, index, r, debug.Stack())
		}
	}()
	fn(ctx, id, index)
}
