package password

import (
	"context"
	"errors"
	"sync"
)

// ErrHasherClosed is an exported constant or variable used by the authentication core.
var ErrHasherClosed = errors.New("password hasher closed")

type hashJob struct {
	secret      string
	encodedHash string
	cost        int
	verify      bool
	result      chan hashResult
}

type hashResult struct {
	hash  string
	match bool
	err   error
}

type pool struct {
	jobs      chan hashJob
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newPool(workers, queueDepth int) *pool {
	p := &pool{
		jobs: make(chan hashJob, queueDepth),
		done: make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}

	return p
}

func (p *pool) run() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			job.result <- execute(job)
		case <-p.done:
			for {
				select {
				case job := <-p.jobs:
					job.result <- execute(job)
				default:
					return
				}
			}
		}
	}
}

func (p *pool) submit(ctx context.Context, job hashJob) (hashResult, error) {
	// Close must not race with in-flight calls; the Engine closes the
	// hasher only after request handling has stopped.
	select {
	case <-p.done:
		return hashResult{}, ErrHasherClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return hashResult{}, err
	}

	job.result = make(chan hashResult, 1)

	select {
	case p.jobs <- job:
	case <-p.done:
		return hashResult{}, ErrHasherClosed
	case <-ctx.Done():
		return hashResult{}, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res, nil
	case <-ctx.Done():
		// The worker still finishes the job; the buffered result channel
		// lets it complete without leaking a goroutine.
		return hashResult{}, ctx.Err()
	}
}

func (p *pool) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Hash dispatches a bcrypt hash of secret to the worker pool and waits for
// the result or ctx cancellation. Fails with [ErrEmptySecret] on empty input.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	res, err := h.pool.submit(ctx, hashJob{secret: secret, cost: h.config.Cost})
	if err != nil {
		return "", err
	}

	return res.hash, res.err
}

// Verify dispatches a constant-time bcrypt comparison to the worker pool.
// A mismatch returns (false, nil); an unparseable stored hash fails with
// [ErrMalformedHash].
func (h *Hasher) Verify(ctx context.Context, secret, encodedHash string) (bool, error) {
	res, err := h.pool.submit(ctx, hashJob{
		secret:      secret,
		encodedHash: encodedHash,
		verify:      true,
	})
	if err != nil {
		return false, err
	}

	return res.match, res.err
}

func execute(job hashJob) hashResult {
	if job.verify {
		match, err := verifyRaw(job.secret, job.encodedHash)
		return hashResult{match: match, err: err}
	}

	hash, err := hashRaw(job.secret, job.cost)
	return hashResult{hash: hash, err: err}
}
