package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oran-rapps/internal/actuation"
	"oran-rapps/internal/actuation/nssmf"
	decisions "oran-rapps/internal/decisions/domain"
	"oran-rapps/internal/eventing"
	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
	"oran-rapps/internal/reconcile"
	"oran-rapps/internal/retry"
	sliceprb "oran-rapps/internal/sliceprb/domain"
	telemetry "oran-rapps/internal/telemetry/domain"
)

// Name identifies the slice PRB rApp in logs, metrics and history.
const Name = "slice-prb"

// Source returns a telemetry snapshot.
type Source interface {
	Snapshot(ctx context.Context) ([]telemetry.Row, error)
}

// Predictor scores a feature batch.
type Predictor interface {
	Predict(ctx context.Context, instances [][][]float64) ([][]float64, error)
}

// SubnetClient reads and resizes network slice subnets.
type SubnetClient interface {
	GetSubnet(ctx context.Context, id string) (nssmf.Subnet, error)
	ModifyPRB(ctx context.Context, subnet nssmf.Subnet, prb int) error
}

// Config tunes the slice PRB cycle.
type Config struct {
	WindowSize   int
	SliceTypeTag string
	NSSITag      string
	Encoder      sliceprb.Encoder
	Actuation    retry.Policy
}

// Deps are the collaborators of a Rapp. Recorder and Events are optional.
type Deps struct {
	Source    Source
	Predictor Predictor
	Subnets   SubnetClient
	Recorder  decisions.Recorder
	Events    eventing.Publisher
	Logger    *zap.SugaredLogger
}

// Rapp forecasts downlink PRB demand per slice subnet and raises the
// allocation when the forecast exceeds it. It owns the requested-level
// cache.
type Rapp struct {
	cfg       Config
	source    Source
	predictor Predictor
	subnets   SubnetClient
	recorder  decisions.Recorder
	events    eventing.Publisher
	logger    *zap.SugaredLogger
	cache     *reconcile.StateCache[int]
	now       func() time.Time
}

// New constructs the slice PRB rApp.
func New(cfg Config, deps Deps) (*Rapp, error) {
	if deps.Source == nil {
		return nil, errors.New("sliceprb: nil source")
	}
	if deps.Predictor == nil {
		return nil, errors.New("sliceprb: nil predictor")
	}
	if deps.Subnets == nil {
		return nil, errors.New("sliceprb: nil subnet client")
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = sliceprb.DefaultWindow
	}
	if cfg.SliceTypeTag == "" {
		cfg.SliceTypeTag = sliceprb.DefaultSliceTypeTag
	}
	if cfg.NSSITag == "" {
		cfg.NSSITag = sliceprb.DefaultNSSITag
	}
	if cfg.Actuation.MaxTries == 0 {
		cfg.Actuation = retry.Once()
	}
	return &Rapp{
		cfg:       cfg,
		source:    deps.Source,
		predictor: deps.Predictor,
		subnets:   deps.Subnets,
		recorder:  deps.Recorder,
		events:    deps.Events,
		logger:    logging.OrNop(deps.Logger),
		cache:     reconcile.NewStateCache[int](),
		now:       time.Now,
	}, nil
}

// Cache exposes the requested PRB levels keyed by NSSI id.
func (r *Rapp) Cache() *reconcile.StateCache[int] {
	return r.cache
}

// RunCycle performs one reconciliation pass over the current snapshot.
func (r *Rapp) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx = eventing.WithCycleID(ctx, cycleID)
	log := r.logger.With("rapp", Name, "cycle_id", cycleID)

	rows, err := r.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("sliceprb: snapshot: %w", err)
	}
	rows = telemetry.Complete(rows, []string{r.cfg.SliceTypeTag, r.cfg.NSSITag}, sliceprb.FeatureFields)
	if len(rows) == 0 {
		log.Infow("no data to process, skipping cycle")
		return nil
	}

	groups := telemetry.GroupBy(rows, r.cfg.NSSITag, r.cfg.SliceTypeTag)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key.Tag != groups[j].Key.Tag {
			return groups[i].Key.Tag < groups[j].Key.Tag
		}
		return groups[i].Key.Entity < groups[j].Key.Entity
	})
	log.Infow("cycle started", "rows", len(rows), "groups", len(groups))

	forecasts := make(map[string]float64, len(groups))
	for _, group := range groups {
		if forecast, ok := r.reconcileGroup(ctx, log, cycleID, group); ok {
			forecasts[group.Key.Entity] = forecast
		}
	}
	metrics.SetCacheEntries(Name, r.cache.Len())
	log.Infow("cycle finished", "forecasts", forecasts)
	return nil
}

func (r *Rapp) reconcileGroup(ctx context.Context, log *zap.SugaredLogger, cycleID string, group telemetry.Group) (float64, bool) {
	nssi := group.Key.Entity
	log = log.With("entity", nssi, "slice_type", group.Key.Tag)
	rec := decisions.Record{
		CycleID:  cycleID,
		RApp:     Name,
		Entity:   nssi,
		Tag:      group.Key.Tag,
		Decision: "none",
		TS:       r.now(),
	}
	detail := map[string]any{"rows": len(group.Rows), "window": r.cfg.WindowSize}
	fail := func(status decisions.Status, err error) {
		detail["error"] = err.Error()
		rec.Status = status
		r.record(ctx, log, rec, detail)
	}

	batch, err := r.cfg.Encoder.BuildBatch(group, r.cfg.WindowSize)
	if err != nil {
		log.Warnw("not enough recent points, skipping group", "err", err)
		metrics.IncGroupSkipped(Name, "short_window")
		fail(decisions.StatusSkipped, err)
		return 0, false
	}

	start := time.Now()
	predictions, err := r.predictor.Predict(ctx, batch)
	if err == nil {
		detail["predictions"] = predictions
	}
	var forecast float64
	if err == nil {
		forecast, err = r.cfg.Encoder.Forecast(predictions)
	}
	if err != nil {
		metrics.ObservePredictor(Name, metrics.ResultError, time.Since(start))
		metrics.IncGroupSkipped(Name, "predictor_error")
		log.Errorw("prediction failed", "err", err)
		fail(decisions.StatusError, err)
		return 0, false
	}
	metrics.ObservePredictor(Name, metrics.ResultSuccess, time.Since(start))
	detail["forecast"] = forecast

	subnet, err := r.subnets.GetSubnet(ctx, nssi)
	if err != nil {
		log.Warnw("subnet lookup failed", "err", err)
		metrics.IncGroupSkipped(Name, "subnet_lookup")
		fail(decisions.StatusError, err)
		return forecast, true
	}
	current, err := subnet.CurrentPRB()
	if err != nil {
		log.Warnw("subnet has no current PRB level", "err", err)
		metrics.IncGroupSkipped(Name, "missing_prb")
		fail(decisions.StatusSkipped, err)
		return forecast, true
	}
	rec.Previous = strconv.Itoa(current)
	detail["current"] = current

	decision := sliceprb.Decide(forecast, current)
	rec.Decision = decision.Name()
	log.Infow("prb decision", "current", current, "forecast", forecast, "decision", rec.Decision)
	if !decision.Increase {
		rec.Status = decisions.StatusNoAction
		r.record(ctx, log, rec, detail)
		return forecast, true
	}
	rec.Target = strconv.Itoa(decision.Target)
	// The NSSMF level is authoritative: a cached target only suppresses the
	// request while the subnet still reports it.
	if cached, ok := r.cache.Get(nssi); ok && cached == decision.Target {
		if current >= cached {
			log.Debugw("level already requested", "target", decision.Target)
			rec.Status = decisions.StatusNoAction
			r.record(ctx, log, rec, detail)
			return forecast, true
		}
		log.Warnw("requested level not in effect, resending", "target", decision.Target, "current", current)
	}

	if err := r.modify(ctx, log, subnet, decision.Target); err != nil {
		metrics.IncActuation(Name, rec.Decision, metrics.ResultError)
		log.Errorw("modification failed, cache unchanged", "target", decision.Target, "err", err)
		fail(decisions.StatusError, err)
		return forecast, true
	}
	r.cache.Set(nssi, decision.Target)
	metrics.IncActuation(Name, rec.Decision, metrics.ResultSuccess)
	log.Infow("slice subnet resized", "target", decision.Target, "previous", current)

	rec.Status = decisions.StatusActuated
	r.record(ctx, log, rec, detail)
	eventing.Emit(ctx, r.events, eventing.ActuationEvent{
		RApp:     Name,
		Entity:   nssi,
		Tag:      group.Key.Tag,
		Action:   rec.Decision,
		Target:   rec.Target,
		Previous: rec.Previous,
	}, log)
	return forecast, true
}

func (r *Rapp) modify(ctx context.Context, log *zap.SugaredLogger, subnet nssmf.Subnet, target int) error {
	policy := r.cfg.Actuation
	if policy.Retryable == nil {
		policy.Retryable = actuation.IsTransient
	}
	_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.subnets.ModifyPRB(ctx, subnet, target)
	}, func(err error, next time.Duration) {
		log.Warnw("modification failed, retrying", "err", err, "retry_in", next)
	})
	return err
}

func (r *Rapp) record(ctx context.Context, log *zap.SugaredLogger, rec decisions.Record, detail map[string]any) {
	if r.recorder == nil {
		return
	}
	if payload, err := json.Marshal(detail); err == nil {
		rec.Detail = payload
	}
	if err := r.recorder.Record(ctx, rec); err != nil {
		log.Warnw("decision record failed", "err", err)
	}
}
