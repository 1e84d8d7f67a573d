package dispatch

import (
	"sync"
)

// ScopeKind selects which errors a Catch observer receives
type ScopeKind int

const (
	// ScopeNodes catches errors from an explicit set of nodes.
	ScopeNodes ScopeKind = iota
	// ScopeFlow catches errors from any node in the observer's flow.
	ScopeFlow
	// ScopeUncaught catches errors no other catch in the flow handled.
	ScopeUncaught
)

// String returns the string representation of ScopeKind
func (k ScopeKind) String() string {
	switch k {
	case ScopeFlow:
		return "flow"
	case ScopeUncaught:
		return "uncaught"
	default:
		return "nodes"
	}
}

// Scope of a Catch registration
type Scope struct {
	Kind  ScopeKind
	Nodes []string
}

// Nodes scopes a catch to the given source nodes
func Nodes(ids ...string) Scope {
	return Scope{Kind: ScopeNodes, Nodes: ids}
}

// WholeFlow scopes a catch to its entire flow
func WholeFlow() Scope {
	return Scope{Kind: ScopeFlow}
}

// Uncaught scopes a catch to errors nothing else in its flow caught
func Uncaught() Scope {
	return Scope{Kind: ScopeUncaught}
}

// FlowResolver answers containment questions: which flow a node lives in and
// which flow encloses a flow. Empty strings mean unknown or root.
type FlowResolver interface {
	FlowOf(nodeID string) string
	Parent(flowID string) string
}

// Flows is an in-memory FlowResolver. Safe for concurrent use.
type Flows struct {
	mu      sync.RWMutex
	nodes   map[string]string
	parents map[string]string
}

// NewFlows creates an empty resolver
func NewFlows() *Flows {
	return &Flows{nodes: make(map[string]string), parents: make(map[string]string)}
}

// Place records that nodeID lives in flowID
func (f *Flows) Place(nodeID, flowID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[nodeID] = flowID
}

// Nest records that flowID is enclosed by parentID
func (f *Flows) Nest(flowID, parentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parents[flowID] = parentID
}

// Reset forgets every placement and nesting
func (f *Flows) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = make(map[string]string)
	f.parents = make(map[string]string)
}

// FlowOf implements FlowResolver
func (f *Flows) FlowOf(nodeID string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nodes[nodeID]
}

// Parent implements FlowResolver
func (f *Flows) Parent(flowID string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.parents[flowID]
}

type rootFlow struct{}

func (rootFlow) FlowOf(string) string { return "" }
func (rootFlow) Parent(string) string { return "" }
