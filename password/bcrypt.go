package password

import (
	"errors"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost     = bcrypt.MinCost
	maxCost     = bcrypt.MaxCost
	defaultCost = 12
	minWorkers  = 1
	maxWorkers  = 256
)

var (
	// ErrEmptySecret is an exported constant or variable used by the authentication core.
	ErrEmptySecret = errors.New("empty secret")
	// ErrMalformedHash is an exported constant or variable used by the authentication core.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Cost is the bcrypt work exponent (work = 2^Cost). The recommended
	// operating range is 10–14; a single hash should take on the order of
	// 100–400ms on commodity hardware.
	Cost int

	// Workers bounds the number of goroutines hashing concurrently.
	Workers int

	// QueueDepth bounds the number of pending hash jobs before submitters
	// block. Zero means Workers * 2.
	QueueDepth int
}

// Hasher defines a public type used by authcore APIs.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	config Config
	pool   *pool
}

// NewHasher describes the newhasher operation and its observable behavior.
//
// NewHasher may return an error when input validation, dependency calls, or security checks fail.
// NewHasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers * 2
	}

	return &Hasher{
		config: cfg,
		pool:   newPool(cfg.Workers, cfg.QueueDepth),
	}, nil
}

// Cost returns the configured bcrypt work exponent.
func (h *Hasher) Cost() int {
	return h.config.Cost
}

// Close stops the worker pool. Pending jobs are drained before workers exit.
func (h *Hasher) Close() {
	if h == nil || h.pool == nil {
		return
	}
	h.pool.close()
}

func hashRaw(secret string, cost int) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func verifyRaw(secret, encodedHash string) (bool, error) {
	if secret == "" {
		return false, ErrEmptySecret
	}
	if _, err := parseCost(encodedHash); err != nil {
		return false, err
	}

	// CompareHashAndPassword is constant-time in the secret.
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, ErrMalformedHash
}

// NeedsRehash describes the needsrehash operation and its observable behavior.
//
// NeedsRehash may return an error when input validation, dependency calls, or security checks fail.
// NeedsRehash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	cost, err := parseCost(encodedHash)
	if err != nil {
		return false, err
	}

	return cost < h.config.Cost, nil
}

func parseCost(encodedHash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return 0, ErrMalformedHash
	}

	return cost, nil
}

func validateConfig(cfg Config) error {
	if cfg.Cost < minCost || cfg.Cost > maxCost {
		return errors.New("password cost must be between " +
			strconv.Itoa(minCost) + " and " + strconv.Itoa(maxCost))
	}
	if cfg.Workers < minWorkers || cfg.Workers > maxWorkers {
		return errors.New("password workers must be between 1 and 256")
	}
	if cfg.QueueDepth < 0 {
		return errors.New("password queue depth must be >= 0")
	}

	return nil
}
