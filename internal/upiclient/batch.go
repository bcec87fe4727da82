package upiclient

import (
	"context"
	"log/slog"
	"sync"
)

type PaymentIntent struct {
	Amount  float64 `json:"amount"`
	VPA     string  `json:"vpa"`
	Receipt string  `json:"receipt,omitempty"`
}

type batchJob struct {
	index  int
	intent PaymentIntent
}

type worker struct {
	id         int
	workerPool chan chan batchJob
	jobChannel chan batchJob
	logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan batchJob, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan batchJob),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, process func(batchJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				w.logger.Debug("worker processing payment", "worker_id", w.id, "index", job.index, "vpa", job.intent.VPA)
				process(job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ProcessBatch runs independent payments on at most workers goroutines.
// Results are in the same order as intents. Intents not started before ctx
// is cancelled are reported with the context error.
func (c *Client) ProcessBatch(ctx context.Context, intents []PaymentIntent, workers int) []PaymentResult {
	results := make([]PaymentResult, len(intents))
	if len(intents) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(intents) {
		workers = len(intents)
	}

	// workers outlive caller cancellation until every dispatched job is done
	poolCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	workerPool := make(chan chan batchJob, workers)
	var workersWG, jobsWG sync.WaitGroup

	for i := 0; i < workers; i++ {
		newWorker(i, workerPool, c.logger).start(poolCtx, &workersWG, func(job batchJob) {
			defer jobsWG.Done()
			results[job.index] = c.ProcessPayment(ctx, job.intent.Amount, job.intent.VPA, job.intent.Receipt)
		})
	}

	for i, intent := range intents {
		select {
		case jobChannel := <-workerPool:
			if ctx.Err() != nil {
				workerPool <- jobChannel
				results[i] = cancelledResult(intent, ctx.Err())
				continue
			}
			jobsWG.Add(1)
			jobChannel <- batchJob{index: i, intent: intent}
		case <-ctx.Done():
			results[i] = cancelledResult(intent, ctx.Err())
		}
	}

	jobsWG.Wait()
	stopWorkers()
	workersWG.Wait()

	c.logger.Info("payment batch finished", "payments", len(intents), "workers", workers)
	return results
}

func cancelledResult(intent PaymentIntent, err error) PaymentResult {
	return PaymentResult{
		Amount: intent.Amount,
		VPA:    intent.VPA,
		Error:  err.Error(),
		Err:    err,
	}
}
