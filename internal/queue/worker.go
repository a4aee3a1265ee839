package queue

import (
	"context"
	"log"
	"sync"
)

// Handler processes one dequeued job.
type Handler func(ctx context.Context, job Job) error

// StartWorkers runs workerCount goroutines that each loop Dequeue/handle
// until ctx is cancelled, generalizing the orchestration scheduler's
// claim-loop shape to a blocking queue instead of a ticker-polled store.
// The returned channel is closed once every worker has drained.
func StartWorkers(ctx context.Context, q Queue, handle Handler, workerCount int) <-chan struct{} {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				job, err := q.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("queue worker %d: dequeue error: %v", id, err)
					continue
				}

				if err := handle(ctx, job); err != nil {
					log.Printf("queue worker %d: handler error for job type %s: %v", id, job.Type, err)
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	return done
}
