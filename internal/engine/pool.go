package engine

import (
	"sync"
)

// workerPool fans symbol evaluations out across a fixed set of goroutines.
// Parallelism is permitted only across symbols: each symbol's pipeline is
// independent, and within a symbol exactly one mandate may be selected per
// cycle. Results come back in input order.
type workerPool struct {
	numWorkers int
}

// newWorkerPool creates a pool with the given number of workers
func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	return &workerPool{numWorkers: numWorkers}
}

// evalJob is one symbol's evaluation work item
type evalJob struct {
	index int
	input symbolInput
}

// evalResult pairs a symbol outcome with its input index
type evalResult struct {
	index   int
	outcome symbolOutcome
}

// run evaluates all symbol inputs in parallel and returns outcomes in the
// same order as the inputs
func (wp *workerPool) run(inputs []symbolInput, evaluate func(symbolInput) symbolOutcome) []symbolOutcome {
	numInputs := len(inputs)
	if numInputs == 0 {
		return nil
	}

	jobs := make(chan evalJob, numInputs)
	results := make(chan evalResult, numInputs)

	numActualWorkers := wp.numWorkers
	if numInputs < numActualWorkers {
		numActualWorkers = numInputs
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- evalResult{
					index:   job.index,
					outcome: evaluate(job.input),
				}
			}
		}()
	}

	for idx, input := range inputs {
		jobs <- evalJob{index: idx, input: input}
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]symbolOutcome, numInputs)
	for result := range results {
		outcomes[result.index] = result.outcome
	}
	return outcomes
}
