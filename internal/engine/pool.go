package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/core"
)

// Pool runs chunk synthesis calls concurrently against a Synthesizer while
// keeping results in input order. Concurrency is bounded by a
// buffered-channel semaphore so the backend is never overwhelmed.
type Pool struct {
	synthesizer core.Synthesizer
	workers     int
	log         *logger.Logger
}

// NewPool creates a Pool with the given worker bound.
func NewPool(synthesizer core.Synthesizer, workers int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		synthesizer: synthesizer,
		workers:     workers,
		log:         log,
	}
}

// SynthesizeAll processes every chunk and returns the audio payloads in
// chunk order. Individual failures do not stop the remaining chunks; the
// first error observed is returned after all workers finish.
func (p *Pool) SynthesizeAll(
	ctx context.Context,
	chunks []string,
	params core.SynthesisParams,
) ([][]byte, error) {
	results := make([][]byte, len(chunks))

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		firstErr  error
	)

	semaphore := make(chan struct{}, p.workers)

	for chunkIndex, chunk := range chunks {
		waitGroup.Add(1)

		go func(index int, chunkText string) {
			defer waitGroup.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			audioData, synthErr := p.synthesizer.Synthesize(ctx, chunkText, params)
			if synthErr != nil {
				mutex.Lock()

				if firstErr == nil {
					firstErr = fmt.Errorf("chunk %d failed: %w", index+1, synthErr)
				}

				mutex.Unlock()
				p.log.Error("Failed to synthesize chunk %d: %v", index+1, synthErr)

				return
			}

			results[index] = audioData
			p.log.Info("Synthesized chunk %d/%d", index+1, len(chunks))
		}(chunkIndex, chunk)
	}

	waitGroup.Wait()
	close(semaphore)

	if firstErr != nil {
		return nil, firstErr
	}

	return results, nil
}
