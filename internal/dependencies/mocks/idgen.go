package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/pokersession/internal/dependencies/idgen"
)

// MockIDs is a mock implementation of idgen.Generator for testing.
// Queued values are returned first; afterwards IDs fall back to a counter.
type MockIDs struct {
	mu sync.Mutex

	// IDResults is a queue of results to return from NewID
	IDResults []string
	idIndex   int
	counter   int

	// CodeResults is a queue of results to return from Code
	CodeResults []string
	codeIndex   int
}

// Ensure MockIDs implements Generator
var _ idgen.Generator = (*MockIDs)(nil)

// NewMockIDs creates a new MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next queued ID, or "id-N" once the queue is exhausted
func (m *MockIDs) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idIndex < len(m.IDResults) {
		result := m.IDResults[m.idIndex]
		m.idIndex++
		return result
	}
	m.counter++
	return fmt.Sprintf("id-%d", m.counter)
}

// Code returns the next queued code, or "CODEN" once the queue is exhausted
func (m *MockIDs) Code(length int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeIndex < len(m.CodeResults) {
		result := m.CodeResults[m.codeIndex]
		m.codeIndex++
		return result
	}
	m.counter++
	return fmt.Sprintf("CODE%d", m.counter)
}

// QueueID adds values to the NewID result queue
func (m *MockIDs) QueueID(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IDResults = append(m.IDResults, values...)
}

// QueueCode adds values to the Code result queue
func (m *MockIDs) QueueCode(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CodeResults = append(m.CodeResults, values...)
}

// Reset clears all queued results
func (m *MockIDs) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IDResults = nil
	m.idIndex = 0
	m.counter = 0
	m.CodeResults = nil
	m.codeIndex = 0
}
