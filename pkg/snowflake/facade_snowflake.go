// Package snowflake generates time-sortable 64-bit IDs for scheduled jobs.
//
// Layout (63 usable bits):
//
//	┌─────────┬─────────────────────┬────────────┬──────────────┐
//	│ 1 bit   │      41 bits        │  10 bits   │   12 bits    │
//	│ sign(0) │ ms since epoch      │  node id   │  sequence    │
//	└─────────┴─────────────────────┴────────────┴──────────────┘
//
// IDs from one node strictly increase, so they double as a registration
// order for jobs that share a fire-time.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// 2024-01-01 00:00:00 UTC
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timeShift = nodeBits + sequenceBits
	nodeShift = sequenceBits
)

var ErrInvalidNode = errors.New("snowflake: node id must be between 0 and 1023")

// Node hands out IDs for one process.
type Node struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	lastMs   int64
	now      func() time.Time
}

// NewNode creates a generator for the given node id.
func NewNode(node int64) (*Node, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	return &Node{node: node, now: time.Now}, nil
}

// Next returns a new ID. If the wall clock steps backwards the node keeps
// counting from the last timestamp it issued instead of failing.
func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().UnixMilli()
	if ms < n.lastMs {
		ms = n.lastMs
	}
	if ms == n.lastMs {
		n.sequence = (n.sequence + 1) & maxSequence
		if n.sequence == 0 {
			// sequence exhausted for this millisecond, borrow the next one
			ms++
		}
	} else {
		n.sequence = 0
	}
	n.lastMs = ms

	return ((ms - epoch) << timeShift) | (n.node << nodeShift) | n.sequence
}

// Time extracts the issue time of an ID.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epoch)
}

// NodeOf extracts the node id of an ID.
func NodeOf(id int64) int64 {
	return (id >> nodeShift) & maxNode
}

// Format renders an ID the way the HTTP layer exposes it.
func Format(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Parse reads an ID produced by Format.
func Parse(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("snowflake: invalid id " + strconv.Quote(s))
	}
	return id, nil
}
