package factory

import (
	"time"

	"github.com/mcoot/pokersession/internal/dependencies/mocks"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/storage/memory"
	"github.com/mcoot/pokersession/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
	Events    *events.Recorder
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDs()
	recorder := events.NewRecorder()

	app := newWithDependencies(store, mockClock, mockIDs, recorder, auth.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
		Events:    recorder,
	}
}
