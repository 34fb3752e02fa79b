package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ids
// ============================================================================
//
// 64-bit layout:
//
//   0 - 41 bit timestamp - 10 bit worker id - 12 bit sequence
//   |   |                  |                  |
//   |   |                  |                  +-- per-millisecond sequence (0-4095)
//   |   |                  +-- worker id (0-1023)
//   |   +-- milliseconds since epoch (about 69 years)
//   +-- sign bit, always 0
//
// Ids are unique per worker and roughly time ordered, which keeps index
// inserts append-mostly.
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets the worker id of the default generator. Only the first call counts.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be in 0-%d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{
			workerID:  workerID,
			timestamp: 0,
			sequence:  0,
		}
	})
}

// NextID returns the next id of the process-wide generator.
func NextID() int64 {
	Init(1)
	return defaultGenerator.Generate()
}

// Generate returns a unique, time-ordered id. When the sequence of the
// current millisecond is exhausted it spins to the next one.
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

// GeneratePaymentID returns an id such as PAY1234567890123456789.
func GeneratePaymentID() string {
	return fmt.Sprintf("PAY%d", NextID())
}

// GenerateTransactionNo formats a ledger entry number: TXN + snowflake id.
func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%d", NextID())
}

// GenerateAccountNumber returns a digits-only account number prefixed with
// the currency code, e.g. USD0001234567890123456.
func GenerateAccountNumber(currency string) string {
	return fmt.Sprintf("%s%019d", currency, NextID())
}

// GenerateBatchID formats a batch id: BAT + snowflake id.
func GenerateBatchID() string {
	return fmt.Sprintf("BAT%s%d", time.Now().UTC().Format("20060102"), NextID())
}
