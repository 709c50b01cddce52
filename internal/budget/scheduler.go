package budget

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTickInterval is how often the tracker evaluates in the background.
// Shorter intervals trade CPU for enforcement responsiveness; navigation
// events shorten the detection window regardless.
const DefaultTickInterval = time.Minute

// tickTimeout bounds one evaluation's storage and page round-trips.
const tickTimeout = 30 * time.Second

// Scheduler fires the tracker on a fixed period, starting with an immediate
// evaluation so a restart never waits a full interval to enforce.
type Scheduler struct {
	tracker  *Tracker
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a scheduler driving tracker every interval.
func NewScheduler(tracker *Tracker, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	return &Scheduler{
		tracker:  tracker,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the evaluation loop.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Budget tracker scheduler started")
}

// Stop terminates the loop and waits for an in-flight evaluation to finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info().Msg("Budget tracker scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneChan)

	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	s.tracker.Tick(ctx)
}
