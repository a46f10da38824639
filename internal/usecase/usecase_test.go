package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"virtualfit/internal/domain"
)

// --- Mocks ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type mockConn struct {
	mu      sync.Mutex
	sent    []domain.OutboundFrame
	sendErr error
	inbound chan domain.ServerEvent
	closed  bool
	done    chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan domain.ServerEvent, 16),
		done:    make(chan struct{}),
	}
}

func (c *mockConn) Send(_ context.Context, frame domain.OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotConnected
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *mockConn) Receive(ctx context.Context) (domain.ServerEvent, error) {
	select {
	case ev, ok := <-c.inbound:
		if !ok {
			return domain.ServerEvent{}, domain.ErrNotConnected
		}
		return ev, nil
	case <-c.done:
		return domain.ServerEvent{}, domain.ErrNotConnected
	case <-ctx.Done():
		return domain.ServerEvent{}, ctx.Err()
	}
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *mockConn) Sent() []domain.OutboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.OutboundFrame(nil), c.sent...)
}

type mockProfiles struct {
	profile *domain.UserProfile
	err     error
}

func (m *mockProfiles) LoadProfile(context.Context) (*domain.UserProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile == nil {
		return nil, domain.NewSubSystemError("profile", "mock.LoadProfile", domain.ErrNotFound, "")
	}
	return m.profile, nil
}

func (m *mockProfiles) SaveProfile(_ context.Context, p *domain.UserProfile) error {
	m.profile = p
	return nil
}

func (m *mockProfiles) DeleteProfile(context.Context) error {
	m.profile = nil
	return nil
}

type mockAnalyzer struct {
	result *domain.FoodAnalysis
	err    error
	block  bool // wait for ctx cancellation
}

func (m *mockAnalyzer) Analyze(ctx context.Context, _ string) (*domain.FoodAnalysis, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.result, m.err
}

var errBoom = errors.New("boom")

func testProfile() *domain.UserProfile {
	return &domain.UserProfile{
		UserID:                 "user-1",
		Name:                   "Sam",
		DOB:                    domain.Date{Time: time.Date(1995, time.March, 10, 0, 0, 0, 0, time.UTC)},
		Gender:                 "Other",
		Height:                 175,
		Weight:                 70,
		Region:                 "IN",
		Goals:                  []string{"Lose weight"},
		DailyCalorieIntake:     2000,
		DailyProteinIntake:     90,
		PreferredMealFrequency: 3,
		CurrentFitnessLevel:    "Beginner",
		DaysPerWeek:            3,
	}
}
