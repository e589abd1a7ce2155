package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Outcome labels for operation counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides basic in-memory counters for HTTP requests and ticket
// operations.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	operationCount map[string]int64
	operationTime  map[string]time.Duration
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests   map[string]int64 `json:"requests"`
	Errors     map[string]int64 `json:"errors"`
	Operations map[string]int64 `json:"operations"`
	// OperationMillis is the cumulative time spent per operation.
	OperationMillis map[string]int64 `json:"operation_millis"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		operationCount: make(map[string]int64),
		operationTime:  make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordOperation counts one lifecycle, wizard or admin operation.
func (m *Metrics) RecordOperation(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationCount[op+"|"+outcome]++
	m.operationTime[op] += duration
}

// Operation returns the count recorded for op and outcome.
func (m *Metrics) Operation(op, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operationCount[op+"|"+outcome]
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Requests:        map[string]int64{},
		Errors:          map[string]int64{},
		Operations:      map[string]int64{},
		OperationMillis: map[string]int64{},
	}
	if m == nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		s.Requests[k] = v
	}
	for k, v := range m.errorCount {
		s.Errors[k] = v
	}
	for k, v := range m.operationCount {
		s.Operations[k] = v
	}
	for k, v := range m.operationTime {
		s.OperationMillis[k] = v.Milliseconds()
	}
	return s
}

// OperationNames lists every operation with at least one recorded outcome.
func (m *Metrics) OperationNames() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.operationTime))
	for k := range m.operationTime {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
