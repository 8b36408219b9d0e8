package kb

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/signalsfoundry/impact-predictor/core"
	"github.com/signalsfoundry/impact-predictor/model"
)

func validPrediction() model.PredictionResult {
	return model.PredictionResult{Valid: true, TimeToImpact: 2, ImpactEnergyJ: 140}
}

func record(id string, src model.ImpactSource, posErr, actualTTI float64) model.ImpactComparisonRecord {
	return model.ImpactComparisonRecord{
		EpisodeID:        id,
		Source:           src,
		PredictedTTI:     2,
		ActualTTI:        actualTTI,
		PredictedEnergyJ: 140,
		ActualEnergyJ:    140,
		PositionErrorM:   posErr,
	}
}

func TestAddAndGetEpisode(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction(), ReleasedAt: 4}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}
	got, ok := store.GetEpisode("e1")
	if !ok || got.ReleasedAt != 4 || got.Completed() {
		t.Fatalf("GetEpisode returned %#v, %v", got, ok)
	}
	if _, ok := store.GetEpisode("missing"); ok {
		t.Fatalf("expected unknown episode lookup to fail")
	}
}

func TestAddEpisodeValidation(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddEpisode(Episode{Prediction: validPrediction()}); err == nil {
		t.Fatalf("expected error for empty ID")
	}
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: model.Invalid()}); !errors.Is(err, core.ErrNoValidPrediction) {
		t.Fatalf("err = %v, want ErrNoValidPrediction", err)
	}
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction()}); err != nil {
		t.Fatalf("first AddEpisode error: %v", err)
	}
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction()}); err == nil {
		t.Fatalf("expected duplicate AddEpisode to fail")
	}
}

func TestCompleteEpisodeOnce(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.CompleteEpisode(record("nope", model.ImpactSourceContact, 0, 2)); !errors.Is(err, ErrEpisodeNotFound) {
		t.Fatalf("err = %v, want ErrEpisodeNotFound", err)
	}
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction()}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}
	if err := store.CompleteEpisode(record("e1", model.ImpactSourceContact, 0.5, 2)); err != nil {
		t.Fatalf("CompleteEpisode error: %v", err)
	}
	if err := store.CompleteEpisode(record("e1", model.ImpactSourceGroundCrossing, 0.5, 2)); err == nil {
		t.Fatalf("expected second completion to fail")
	}
	ep, _ := store.GetEpisode("e1")
	if !ep.Completed() || ep.Record.Source != model.ImpactSourceContact {
		t.Fatalf("episode record = %#v, want first contact record", ep.Record)
	}
}

func TestListEpisodesKeepsReleaseOrder(t *testing.T) {
	store := NewKnowledgeBase()
	for i := range 5 {
		if err := store.AddEpisode(Episode{ID: fmt.Sprintf("e-%d", i), Prediction: validPrediction()}); err != nil {
			t.Fatalf("AddEpisode error: %v", err)
		}
	}
	list := store.ListEpisodes()
	if len(list) != 5 {
		t.Fatalf("ListEpisodes len=%d, want 5", len(list))
	}
	for i, ep := range list {
		if want := fmt.Sprintf("e-%d", i); ep.ID != want {
			t.Fatalf("list[%d] = %s, want %s", i, ep.ID, want)
		}
	}
}

func TestApplyEngineEvents(t *testing.T) {
	store := NewKnowledgeBase()
	pred := validPrediction()
	state := model.KinematicState{MassKg: 1, AltitudeAGL: 16}
	rec := record("ep", model.ImpactSourceGroundCrossing, 0, 2)

	events := []core.Event{
		{Type: core.EventPredicted, Prediction: &pred},
		{Type: core.EventReleased, EpisodeID: "ep", Time: 1, Prediction: &pred, Release: &state},
		{Type: core.EventImpactConfirmed, EpisodeID: "ep", Time: 3, Record: &rec},
		{Type: core.EventReset, EpisodeID: "ep"},
	}
	for _, ev := range events {
		if err := store.Apply(ev); err != nil {
			t.Fatalf("Apply(%s): %v", ev.Type, err)
		}
	}

	ep, ok := store.GetEpisode("ep")
	if !ok || !ep.Completed() || ep.Release.AltitudeAGL != 16 || ep.ReleasedAt != 1 {
		t.Fatalf("episode = %#v", ep)
	}
	if err := store.Apply(core.Event{Type: core.EventReleased, EpisodeID: "x"}); err == nil {
		t.Fatalf("expected error for a released event without payload")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewKnowledgeBase()

	var mu sync.Mutex
	var got []EventType
	unsubscribe := store.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})
	other := 0
	store.Subscribe(func(Event) { other++ })

	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction()}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}
	if err := store.CompleteEpisode(record("e1", model.ImpactSourceContact, 0, 2)); err != nil {
		t.Fatalf("CompleteEpisode error: %v", err)
	}
	unsubscribe()
	if err := store.AddEpisode(Episode{ID: "e2", Prediction: validPrediction()}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}

	if len(got) != 2 || got[0] != EventEpisodeReleased || got[1] != EventEpisodeCompleted {
		t.Fatalf("events = %v, want released then completed", got)
	}
	if other != 3 {
		t.Fatalf("remaining subscriber saw %d events, want 3", other)
	}
}

func TestSummary(t *testing.T) {
	store := NewKnowledgeBase()
	for i, posErr := range []float64{1, 2, 3} {
		id := fmt.Sprintf("e-%d", i)
		if err := store.AddEpisode(Episode{ID: id, Prediction: validPrediction()}); err != nil {
			t.Fatalf("AddEpisode error: %v", err)
		}
		src := model.ImpactSourceGroundCrossing
		if i == 0 {
			src = model.ImpactSourceContact
		}
		if err := store.CompleteEpisode(record(id, src, posErr, 2-float64(i)*0.5)); err != nil {
			t.Fatalf("CompleteEpisode error: %v", err)
		}
	}
	if err := store.AddEpisode(Episode{ID: "pending", Prediction: validPrediction()}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}

	sum := store.Summary()
	if sum.Episodes != 4 || sum.Completed != 3 {
		t.Fatalf("episodes=%d completed=%d, want 4 and 3", sum.Episodes, sum.Completed)
	}
	if sum.BySource[model.ImpactSourceContact] != 1 || sum.BySource[model.ImpactSourceGroundCrossing] != 2 {
		t.Fatalf("BySource = %v", sum.BySource)
	}
	pos := sum.PositionErrorM
	if pos.Mean != 2 || math.Abs(pos.StdDev-1) > 1e-12 || pos.P50 != 2 || pos.P95 != 3 || pos.Max != 3 {
		t.Fatalf("position stats = %+v", pos)
	}
	// time errors are |0|, |-0.5|, |-1|
	if math.Abs(sum.TimeErrorS.Mean-0.5) > 1e-12 || sum.TimeErrorS.Max != 1 {
		t.Fatalf("time stats = %+v", sum.TimeErrorS)
	}
	if sum.EnergyErrorJ != (ErrorStats{}) {
		t.Fatalf("energy stats = %+v, want zero", sum.EnergyErrorJ)
	}
}

func TestSummaryEmptyAndSingle(t *testing.T) {
	store := NewKnowledgeBase()
	if sum := store.Summary(); sum.Completed != 0 || sum.PositionErrorM != (ErrorStats{}) {
		t.Fatalf("empty summary = %+v", sum)
	}
	if err := store.AddEpisode(Episode{ID: "e1", Prediction: validPrediction()}); err != nil {
		t.Fatalf("AddEpisode error: %v", err)
	}
	if err := store.CompleteEpisode(record("e1", model.ImpactSourceContact, 4, 2)); err != nil {
		t.Fatalf("CompleteEpisode error: %v", err)
	}
	if got := store.Summary().PositionErrorM; got.StdDev != 0 || got.Mean != 4 {
		t.Fatalf("single-sample stats = %+v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.ListEpisodes()
			_ = store.Summary()
		}()
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("e-%d", i)
			_ = store.AddEpisode(Episode{ID: id, Prediction: validPrediction()})
			_ = store.CompleteEpisode(record(id, model.ImpactSourceContact, float64(i), 2))
		}()
	}
	wg.Wait()
	if got := store.Summary().Completed; got != 10 {
		t.Fatalf("completed = %d, want 10", got)
	}
}
