// Package graph implements the in-memory graph data model: the concepts
// table, the short-term and long-term synaptic edge zones, and the
// working-memory ledger, behind a thread-safe Store. Plasticity,
// consolidation, recall, and forgetting are free functions in sibling
// packages that operate on a *Store; Store itself only knows how to hold
// and mutate its four tables.
package graph

import (
	"time"

	"github.com/arborix/synapse/pkg/engram"
)

// Concept is a stable identity plus a content payload. Identity never
// changes once learned; content and metadata may be overwritten by
// AddConcept, and access bookkeeping advances monotonically via Access.
type Concept struct {
	ID           engram.ID
	Content      string
	Metadata     map[string]string
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  uint64
}

// clone returns a deep-enough copy so that callers can mutate the
// returned Concept without racing the copy still held in the table.
func (c Concept) clone() Concept {
	if c.Metadata != nil {
		m := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			m[k] = v
		}
		c.Metadata = m
	}
	return c
}

// Zone identifies which edge table a synaptic edge lives in.
type Zone int

const (
	// ShortTerm holds recently formed edges, subject to aggressive LTP/LTD
	// and eligible for promotion.
	ShortTerm Zone = iota
	// LongTerm holds promoted edges, subject to slower decay.
	LongTerm
)

func (z Zone) String() string {
	if z == LongTerm {
		return "long-term"
	}
	return "short-term"
}

// Edge is a directed, weighted synaptic connection between two concepts.
// Which zone holds it is a property of the table, not a field here.
type Edge struct {
	From            engram.ID
	To              engram.ID
	Weight          engram.Weight
	CreatedAt       time.Time
	LastAccessed    time.Time
	ActivationCount uint64
}

// Key returns the ordered-pair key this edge is stored under.
func (e Edge) Key() engram.EdgeKey {
	return engram.EdgeKey{From: e.From, To: e.To}
}

// Snapshot reports aggregate counts over the store, mirroring the shape
// spec.md asks stats() to return for both the bare graph store and the
// persistent facade wrapping it.
type Snapshot struct {
	Concepts         int
	ShortTermEdges   int
	LongTermEdges    int
	WorkingMemory    int
	LastConsolidated time.Time
	// Degraded is always false on a bare Store; the persistent facade
	// sets it once a persistence failure has been observed, per the
	// propagation policy in the error-handling design.
	Degraded bool
}
