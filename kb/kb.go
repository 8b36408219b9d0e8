package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/impact-predictor/core"
	"github.com/signalsfoundry/impact-predictor/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventEpisodeReleased EventType = iota
	EventEpisodeCompleted
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type    EventType
	Episode Episode
}

// Episode is one predict/release/impact cycle.
type Episode struct {
	ID         string
	Prediction model.PredictionResult
	Release    model.KinematicState
	ReleasedAt float64

	// Record is nil until the impact is confirmed.
	Record *model.ImpactComparisonRecord
}

// Completed reports whether the impact has been recorded.
func (e Episode) Completed() bool { return e.Record != nil }

// ErrEpisodeNotFound is returned for unknown episode IDs.
var ErrEpisodeNotFound = errors.New("episode not found")

// KnowledgeBase is an in-memory, thread-safe store of fall episodes. The
// engine runs on one goroutine; presentation readers may run on others.
type KnowledgeBase struct {
	mu sync.RWMutex

	episodes map[string]*Episode
	order    []string

	nextSub int
	subs    map[int]func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		episodes: make(map[string]*Episode),
		subs:     make(map[int]func(Event)),
	}
}

// AddEpisode stores a released episode. It returns an error if the ID is
// empty or already exists.
func (kb *KnowledgeBase) AddEpisode(ep Episode) error {
	if ep.ID == "" {
		return errors.New("episode ID is required")
	}
	if !ep.Prediction.Valid {
		return fmt.Errorf("episode %q: %w", ep.ID, core.ErrNoValidPrediction)
	}

	kb.mu.Lock()
	if _, exists := kb.episodes[ep.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("episode with ID %q already exists", ep.ID)
	}
	ep.Record = nil
	stored := ep
	kb.episodes[ep.ID] = &stored
	kb.order = append(kb.order, ep.ID)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventEpisodeReleased, Episode: stored})
	return nil
}

// CompleteEpisode attaches the comparison record to its episode. A second
// record for the same episode is rejected.
func (kb *KnowledgeBase) CompleteEpisode(rec model.ImpactComparisonRecord) error {
	kb.mu.Lock()
	ep, ok := kb.episodes[rec.EpisodeID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("complete %q: %w", rec.EpisodeID, ErrEpisodeNotFound)
	}
	if ep.Record != nil {
		kb.mu.Unlock()
		return fmt.Errorf("episode %q already completed", rec.EpisodeID)
	}
	r := rec
	ep.Record = &r
	event := Event{Type: EventEpisodeCompleted, Episode: *ep}
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// Apply folds an engine event into the store. Events that do not describe
// an episode are ignored.
func (kb *KnowledgeBase) Apply(ev core.Event) error {
	switch ev.Type {
	case core.EventReleased:
		if ev.Prediction == nil || ev.Release == nil {
			return fmt.Errorf("released event for %q is missing its payload", ev.EpisodeID)
		}
		return kb.AddEpisode(Episode{
			ID:         ev.EpisodeID,
			Prediction: *ev.Prediction,
			Release:    *ev.Release,
			ReleasedAt: ev.Time,
		})
	case core.EventImpactConfirmed:
		if ev.Record == nil {
			return fmt.Errorf("impact event for %q is missing its record", ev.EpisodeID)
		}
		return kb.CompleteEpisode(*ev.Record)
	default:
		return nil
	}
}

// GetEpisode returns a copy of the episode with the given ID.
func (kb *KnowledgeBase) GetEpisode(id string) (Episode, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	ep, ok := kb.episodes[id]
	if !ok {
		return Episode{}, false
	}
	return *ep, true
}

// ListEpisodes returns a snapshot of all episodes in release order.
func (kb *KnowledgeBase) ListEpisodes() []Episode {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]Episode, 0, len(kb.order))
	for _, id := range kb.order {
		res = append(res, *kb.episodes[id])
	}
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// snapshotSubs copies the subscriber list; callers hold kb.mu.
func (kb *KnowledgeBase) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	return subs
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

// ErrorStats summarises one error series.
type ErrorStats struct {
	Mean   float64
	StdDev float64
	P50    float64
	P95    float64
	Max    float64
}

// AccuracySummary describes how well predictions matched completed falls.
// Time and energy use absolute errors.
type AccuracySummary struct {
	Episodes  int
	Completed int
	BySource  map[model.ImpactSource]int

	TimeErrorS     ErrorStats
	PositionErrorM ErrorStats
	EnergyErrorJ   ErrorStats
}

// Summary computes accuracy statistics over completed episodes.
func (kb *KnowledgeBase) Summary() AccuracySummary {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	sum := AccuracySummary{
		Episodes: len(kb.episodes),
		BySource: make(map[model.ImpactSource]int),
	}
	var timeErr, posErr, energyErr []float64
	for _, id := range kb.order {
		rec := kb.episodes[id].Record
		if rec == nil {
			continue
		}
		sum.Completed++
		sum.BySource[rec.Source]++
		timeErr = append(timeErr, math.Abs(rec.TimeErrorS()))
		posErr = append(posErr, rec.PositionErrorM)
		energyErr = append(energyErr, math.Abs(rec.EnergyErrorJ()))
	}

	sum.TimeErrorS = errorStats(timeErr)
	sum.PositionErrorM = errorStats(posErr)
	sum.EnergyErrorJ = errorStats(energyErr)
	return sum
}

func errorStats(xs []float64) ErrorStats {
	if len(xs) == 0 {
		return ErrorStats{}
	}
	sort.Float64s(xs)
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	return ErrorStats{
		Mean:   mean,
		StdDev: std,
		P50:    stat.Quantile(0.5, stat.Empirical, xs, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, xs, nil),
		Max:    floats.Max(xs),
	}
}
