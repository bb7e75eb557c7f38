package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oran-rapps/internal/actuation"
	"oran-rapps/internal/actuation/ncmp"
	decisions "oran-rapps/internal/decisions/domain"
	energysaving "oran-rapps/internal/energysaving/domain"
	"oran-rapps/internal/eventing"
	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
	"oran-rapps/internal/reconcile"
	"oran-rapps/internal/retry"
	telemetry "oran-rapps/internal/telemetry/domain"
)

// Name identifies the energy-saving rApp in logs, metrics and history.
const Name = "energy-saving"

// Source returns a telemetry snapshot.
type Source interface {
	Snapshot(ctx context.Context) ([]telemetry.Row, error)
}

// Predictor scores a feature batch.
type Predictor interface {
	Predict(ctx context.Context, instances [][][]float64) ([][]float64, error)
}

// CellActuator changes the administrative state of a cell.
type CellActuator interface {
	SetAdministrativeState(ctx context.Context, resourceID string, state ncmp.AdministrativeState) error
}

// Inventory lists the cells known to the topology service.
type Inventory interface {
	NRCellDUs(ctx context.Context) ([]string, error)
}

// Config tunes the energy-saving cycle.
type Config struct {
	// CellField is the label holding the cell id.
	CellField string
	Threshold float64
	// WindowSize is the number of most recent rows fed to the model; zero
	// feeds the whole group.
	WindowSize int
	// ActuationDelay is waited before each actuation.
	ActuationDelay time.Duration
	// ResourcePrefix is prepended to the entity key to form the NCMP
	// resource identifier.
	ResourcePrefix string
	Actuation      retry.Policy
}

// Deps are the collaborators of a Rapp. Inventory, Recorder and Events are
// optional.
type Deps struct {
	Source    Source
	Predictor Predictor
	Actuator  CellActuator
	Inventory Inventory
	Recorder  decisions.Recorder
	Events    eventing.Publisher
	Logger    *zap.SugaredLogger
}

// Rapp powers cells off when the model predicts they are idle and back on
// otherwise. It owns the cell power cache.
type Rapp struct {
	cfg       Config
	source    Source
	predictor Predictor
	actuator  CellActuator
	inventory Inventory
	recorder  decisions.Recorder
	events    eventing.Publisher
	logger    *zap.SugaredLogger
	cache     *reconcile.StateCache[energysaving.PowerState]
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New constructs the energy-saving rApp.
func New(cfg Config, deps Deps) (*Rapp, error) {
	if deps.Source == nil {
		return nil, errors.New("energysaving: nil source")
	}
	if deps.Predictor == nil {
		return nil, errors.New("energysaving: nil predictor")
	}
	if deps.Actuator == nil {
		return nil, errors.New("energysaving: nil actuator")
	}
	if cfg.CellField == "" {
		cfg.CellField = energysaving.FieldCellID
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = energysaving.DefaultThreshold
	}
	if cfg.Actuation.MaxTries == 0 {
		cfg.Actuation = retry.Once()
	}
	return &Rapp{
		cfg:       cfg,
		source:    deps.Source,
		predictor: deps.Predictor,
		actuator:  deps.Actuator,
		inventory: deps.Inventory,
		recorder:  deps.Recorder,
		events:    deps.Events,
		logger:    logging.OrNop(deps.Logger),
		cache:     reconcile.NewStateCache[energysaving.PowerState](),
		now:       time.Now,
		sleep:     sleepCtx,
	}, nil
}

// Cache exposes the cell power cache.
func (r *Rapp) Cache() *reconcile.StateCache[energysaving.PowerState] {
	return r.cache
}

// RunCycle performs one reconciliation pass over the current snapshot.
func (r *Rapp) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx = eventing.WithCycleID(ctx, cycleID)
	log := r.logger.With("rapp", Name, "cycle_id", cycleID)

	rows, err := r.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("energysaving: snapshot: %w", err)
	}
	rows = telemetry.Complete(rows, []string{r.cfg.CellField, telemetry.MeasurementKey}, energysaving.FeatureFields)
	if len(rows) == 0 {
		log.Infow("no data to process, skipping cycle")
		return nil
	}

	parsed := make(map[string]energysaving.CellID)
	valid := rows[:0:0]
	for _, row := range rows {
		raw, _ := row.Label(r.cfg.CellField)
		id, ok := parsed[raw]
		if !ok {
			id, err = energysaving.ParseCellID(raw)
			if err != nil {
				log.Warnw("dropping row with unparsable cell id", "cell_id", raw)
				continue
			}
			parsed[raw] = id
		}
		valid = append(valid, row)
	}
	ids := make([]energysaving.CellID, 0, len(parsed))
	for _, id := range parsed {
		ids = append(ids, id)
	}
	numbers := energysaving.Number(ids)
	inventory := r.inventorySnapshot(ctx, log)

	groups := telemetry.GroupBy(valid, r.cfg.CellField, telemetry.MeasurementKey)
	log.Infow("cycle started", "rows", len(valid), "groups", len(groups))
	for _, group := range groups {
		r.reconcileGroup(ctx, log, cycleID, group, numbers[parsed[group.Key.Entity]], inventory)
	}
	metrics.SetCacheEntries(Name, r.cache.Len())
	return nil
}

func (r *Rapp) reconcileGroup(ctx context.Context, log *zap.SugaredLogger, cycleID string, group telemetry.Group, cellNumber int, inventory map[string]bool) {
	entity := energysaving.EntityKey(group.Key.Entity, group.Key.Tag)
	log = log.With("entity", entity, "cellidnumber", cellNumber)
	rec := decisions.Record{
		CycleID: cycleID,
		RApp:    Name,
		Entity:  entity,
		Tag:     group.Key.Tag,
		TS:      r.now(),
	}
	detail := map[string]any{"cellidnumber": cellNumber, "rows": len(group.Rows)}

	batch, err := energysaving.BuildBatch(group, r.cfg.WindowSize)
	if err != nil {
		log.Warnw("skipping group", "err", err)
		metrics.IncGroupSkipped(Name, "short_window")
		rec.Decision, rec.Status = "none", decisions.StatusSkipped
		r.record(ctx, log, rec, detail)
		return
	}

	start := time.Now()
	predictions, err := r.predictor.Predict(ctx, batch)
	if err != nil {
		metrics.ObservePredictor(Name, metrics.ResultError, time.Since(start))
		metrics.IncGroupSkipped(Name, "predictor_error")
		log.Errorw("prediction failed", "err", err)
		detail["error"] = err.Error()
		rec.Decision, rec.Status = "none", decisions.StatusError
		r.record(ctx, log, rec, detail)
		return
	}
	metrics.ObservePredictor(Name, metrics.ResultSuccess, time.Since(start))

	decision := energysaving.Decide(predictions, r.cfg.Threshold)
	target := decision.Target()
	rec.Decision, rec.Target = decision.Name(), string(target)
	detail["predictions"] = predictions
	if decision.Inconclusive {
		detail["inconclusive"] = true
		log.Warnw("inconclusive prediction, keeping cell active", "predictions", predictions)
	}
	if inventory != nil {
		_, present := inventory[group.Key.Entity]
		detail["in_inventory"] = present
		log.Infow("inventory check", "cell_id", group.Key.Entity, "present", present)
	}

	if previous, ok := r.cache.Get(entity); ok {
		rec.Previous = string(previous)
	}
	if !r.cache.Differs(entity, target) {
		log.Debugw("cell already in target state", "state", target)
		rec.Status = decisions.StatusNoAction
		r.record(ctx, log, rec, detail)
		return
	}

	if err := r.sleep(ctx, r.cfg.ActuationDelay); err != nil {
		log.Warnw("actuation delay interrupted", "err", err)
		detail["error"] = err.Error()
		rec.Status = decisions.StatusError
		r.record(ctx, log, rec, detail)
		return
	}
	if err := r.actuate(ctx, log, entity, target); err != nil {
		metrics.IncActuation(Name, rec.Decision, metrics.ResultError)
		log.Errorw("actuation failed, cache unchanged", "target", target, "err", err)
		detail["error"] = err.Error()
		rec.Status = decisions.StatusError
		r.record(ctx, log, rec, detail)
		return
	}
	r.cache.Set(entity, target)
	metrics.IncActuation(Name, rec.Decision, metrics.ResultSuccess)
	log.Infow("cell actuated", "target", target, "previous", rec.Previous)

	rec.Status = decisions.StatusActuated
	r.record(ctx, log, rec, detail)
	eventing.Emit(ctx, r.events, eventing.ActuationEvent{
		RApp:     Name,
		Entity:   entity,
		Tag:      group.Key.Tag,
		Action:   rec.Decision,
		Target:   rec.Target,
		Previous: rec.Previous,
	}, log)
}

func (r *Rapp) actuate(ctx context.Context, log *zap.SugaredLogger, entity string, target energysaving.PowerState) error {
	state := ncmp.Unlocked
	if target == energysaving.PowerOff {
		state = ncmp.Locked
	}
	resourceID := r.cfg.ResourcePrefix + entity
	policy := r.cfg.Actuation
	if policy.Retryable == nil {
		policy.Retryable = actuation.IsTransient
	}
	_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.actuator.SetAdministrativeState(ctx, resourceID, state)
	}, func(err error, next time.Duration) {
		log.Warnw("actuation failed, retrying", "err", err, "retry_in", next)
	})
	return err
}

// inventorySnapshot returns the set of cells known to the topology service,
// or nil when it is not configured or unreachable.
func (r *Rapp) inventorySnapshot(ctx context.Context, log *zap.SugaredLogger) map[string]bool {
	if r.inventory == nil {
		return nil
	}
	cells, err := r.inventory.NRCellDUs(ctx)
	if err != nil {
		log.Warnw("inventory lookup failed", "err", err)
		return nil
	}
	set := make(map[string]bool, len(cells))
	for _, cell := range cells {
		set[cell] = true
	}
	return set
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

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
