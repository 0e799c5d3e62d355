// Package snowflake allocates time-ordered 63-bit message ids.
//
// Layout, high to low: 41 bits of milliseconds since Epoch, 5 bits worker,
// 5 bits process, 12 bits per-millisecond sequence.
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

// Epoch is 2026-01-01 00:00:00 UTC in unix milliseconds.
const Epoch int64 = 1767225600000

const (
	sequenceBits = 12
	processBits  = 5
	workerBits   = 5

	MaxWorkerID  = 1<<workerBits - 1
	MaxProcessID = 1<<processBits - 1
	maxSequence  = 1<<sequenceBits - 1

	processShift = sequenceBits
	workerShift  = processShift + processBits
	timeShift    = workerShift + workerBits
)

// Generator hands out ids for one worker/process pair. Safe for concurrent
// use.
type Generator struct {
	worker, process int64
	now             func() time.Time

	mu   sync.Mutex
	tick int64 // millisecond of the last id, relative to Epoch
	seq  int64
}

func NewGenerator(workerID, processID int64) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("snowflake: worker id %d outside [0, %d]", workerID, MaxWorkerID)
	}
	if processID < 0 || processID > MaxProcessID {
		return nil, fmt.Errorf("snowflake: process id %d outside [0, %d]", processID, MaxProcessID)
	}
	return &Generator{worker: workerID, process: processID, now: time.Now, tick: -1}, nil
}

// Next returns an id greater than every id this generator returned before.
// When the clock stalls, steps back, or a millisecond's sequence runs out,
// the generator borrows the following millisecond instead of waiting.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch ms := g.now().UnixMilli() - Epoch; {
	case ms > g.tick:
		g.tick, g.seq = ms, 0
	case g.seq < maxSequence:
		g.seq++
	default:
		g.tick, g.seq = g.tick+1, 0
	}
	return g.tick<<timeShift | g.worker<<workerShift | g.process<<processShift | g.seq
}

// Parts is a decoded id.
type Parts struct {
	Time     time.Time
	Worker   int64
	Process  int64
	Sequence int64
}

func Decode(id int64) Parts {
	return Parts{
		Time:     Timestamp(id),
		Worker:   id >> workerShift & MaxWorkerID,
		Process:  id >> processShift & MaxProcessID,
		Sequence: id & maxSequence,
	}
}

// Timestamp returns the creation time embedded in an id.
func Timestamp(id int64) time.Time {
	return time.UnixMilli(id>>timeShift + Epoch)
}
