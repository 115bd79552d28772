// Package app runs the fleet service: it keeps robot and task state, runs one
// dispatch cycle per tick and carries commands and progress reports over MQTT.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agvfleet/api"
	"github.com/kilianp07/agvfleet/config"
	"github.com/kilianp07/agvfleet/core/battery"
	"github.com/kilianp07/agvfleet/core/dispatch"
	dispatchlog "github.com/kilianp07/agvfleet/core/dispatch/logging"
	"github.com/kilianp07/agvfleet/core/events"
	corelogger "github.com/kilianp07/agvfleet/core/logger"
	coremetrics "github.com/kilianp07/agvfleet/core/metrics"
	"github.com/kilianp07/agvfleet/core/model"
	coremqtt "github.com/kilianp07/agvfleet/core/mqtt"
	"github.com/kilianp07/agvfleet/core/routegraph"
	"github.com/kilianp07/agvfleet/core/snapshot"
	"github.com/kilianp07/agvfleet/infra/logger"
	"github.com/kilianp07/agvfleet/infra/metrics"
	"github.com/kilianp07/agvfleet/infra/mqtt"
	"github.com/kilianp07/agvfleet/infra/taskfeed"
	"github.com/kilianp07/agvfleet/internal/eventbus"
)

// Options carries the collaborators of a Service. Nil fields get no-op or
// default implementations; Client is required.
type Options struct {
	Dispatch dispatch.Config
	Battery  battery.Config
	Client   coremqtt.Client
	Store    dispatchlog.LogStore
	Sink     coremetrics.MetricsSink
	Logger   corelogger.Logger
	Clock    func() time.Time
	// StaleAfter forgets robots that stopped reporting. Zero keeps them.
	StaleAfter time.Duration
	// PrometheusAddr serves /metrics when set.
	PrometheusAddr string
	// API serves the plan log and fleet endpoints when API.Addr is set.
	API api.Config
	// TaskFeed polls a warehouse system for tasks when TaskFeed.URL is set.
	TaskFeed taskfeed.Config
}

// Service serializes dispatch cycles over the reported fleet state.
type Service struct {
	dispatcher *dispatch.Dispatcher
	swaps      *battery.Scheduler
	client     coremqtt.Client
	store      dispatchlog.LogStore
	sink       coremetrics.MetricsSink
	log        corelogger.Logger
	clock      func() time.Time
	interval   time.Duration
	promAddr   string
	api        api.Config
	feed       taskfeed.Config

	tasks *TaskStore
	fleet *Fleet

	cycles    *eventbus.TypedBus[events.CycleEvent]
	swapBus   *eventbus.TypedBus[events.SwapEvent]
	mu        sync.Mutex
	closeOnce sync.Once
}

// New builds a Service from the configuration: site snapshot, Paho client,
// metrics sinks and plan log store.
func New(cfg *config.Config) (*Service, error) {
	snap, err := snapshot.Load(cfg.Site.Snapshot)
	if err != nil {
		return nil, err
	}
	site, err := snap.Site()
	if err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := dispatchlog.NewStore(cfg.Logging.StoreConfig())
	if err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("plan log: %w", err)
	}
	svc, err := NewService(site, Options{
		Dispatch:       cfg.Dispatch,
		Battery:        cfg.Battery,
		Client:         client,
		Store:          store,
		Sink:           sink,
		PrometheusAddr: cfg.Metrics.PrometheusAddr,
		API:            cfg.API,
		TaskFeed:       cfg.TaskFeed,
	})
	if err != nil {
		client.Disconnect()
		_ = store.Close()
		return nil, err
	}
	if err := svc.Seed(snap); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

// NewService wires a service around a validated site.
func NewService(site *snapshot.Site, opts Options) (*Service, error) {
	if site == nil || opts.Client == nil {
		return nil, fmt.Errorf("app: nil site or client")
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("service")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Store == nil {
		opts.Store = dispatchlog.NopStore{}
	}
	if opts.Sink == nil {
		opts.Sink = coremetrics.NopSink{}
	}
	d, err := dispatch.NewDispatcher(site.Graph, site.Stations, opts.Dispatch, logger.New("dispatcher"))
	if err != nil {
		return nil, err
	}
	d.SetClock(opts.Clock)
	chargers := d.Stations().OfKind(model.StationCharger)
	swaps, err := battery.NewScheduler(opts.Battery, chargers, logger.New("battery"),
		battery.WithClock(opts.Clock), battery.WithTemplate(SwapTemplate(site.Graph)))
	if err != nil {
		return nil, err
	}
	dcfg := opts.Dispatch
	dcfg.SetDefaults()
	return &Service{
		dispatcher: d,
		swaps:      swaps,
		client:     opts.Client,
		store:      opts.Store,
		sink:       opts.Sink,
		log:        opts.Logger,
		clock:      opts.Clock,
		interval:   dcfg.CycleInterval(),
		promAddr:   opts.PrometheusAddr,
		api:        opts.API,
		feed:       opts.TaskFeed,
		tasks:      NewTaskStore(),
		fleet:      NewFleet(opts.StaleAfter),
		cycles:     eventbus.NewTyped[events.CycleEvent](),
		swapBus:    eventbus.NewTyped[events.SwapEvent](),
	}, nil
}

// SwapTemplate docks and undocks at chargers that expose those sections.
func SwapTemplate(g *routegraph.Graph) battery.StepTemplate {
	return func(charger string) []model.StepKind {
		if g.Sequencing(charger) == routegraph.SequencingDockWaitUndock {
			return []model.StepKind{model.StepMoveToStation, model.StepDock, model.StepSwapBattery, model.StepUndock}
		}
		return battery.DefaultTemplate(charger)
	}
}

// Seed loads the robots and tasks found in a snapshot.
func (s *Service) Seed(snap *snapshot.Snapshot) error {
	robots, err := snap.RobotModels()
	if err != nil {
		return err
	}
	tasks, err := snap.TaskModels()
	if err != nil {
		return err
	}
	now := s.clock()
	for _, r := range robots {
		s.fleet.Update(r, now)
	}
	for _, t := range tasks {
		if err := s.checkSteps(t); err != nil {
			return err
		}
		if err := s.tasks.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// checkSteps refuses a task with a step that has no goal node in the site.
func (s *Service) checkSteps(t model.Task) error {
	if err := s.dispatcher.Graph().CheckSteps(t.Steps); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	return nil
}

// Tasks exposes the task store.
func (s *Service) Tasks() *TaskStore { return s.tasks }

// RobotList returns the robots currently known, sorted by id.
func (s *Service) RobotList() []model.Robot { return s.fleet.Snapshot(s.clock()) }

// TaskList returns the stored tasks in submission order.
func (s *Service) TaskList() []model.Task { return s.tasks.Snapshot() }

// CycleEvents returns the bus carrying one event per cycle.
func (s *Service) CycleEvents() *eventbus.TypedBus[events.CycleEvent] { return s.cycles }

// SwapEvents returns the bus carrying swap state changes.
func (s *Service) SwapEvents() *eventbus.TypedBus[events.SwapEvent] { return s.swapBus }

// UpdateRobot records a state report.
func (s *Service) UpdateRobot(rec snapshot.RobotRecord) error {
	r, err := rec.ToModel()
	if err != nil {
		return err
	}
	s.fleet.Update(r, s.clock())
	return nil
}

// SubmitTasks adds external tasks. The batch is rejected as a whole when one
// record is malformed, reuses a known id or has a step the site cannot serve.
func (s *Service) SubmitTasks(recs []snapshot.TaskRecord) error {
	tasks, err := snapshot.Tasks(recs)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if _, ok := s.tasks.Get(t.ID); ok {
			return fmt.Errorf("%w: task %s already exists", model.ErrConfiguration, t.ID)
		}
		if err := s.checkSteps(t); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		if err := s.tasks.Add(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) isSwap(robotID, taskID string) (battery.State, bool) {
	st, ok := s.swaps.State(robotID)
	if !ok || st.Task == nil || st.Task.ID != taskID {
		return battery.State{}, false
	}
	return st, true
}

func (s *Service) publishSwap(t model.Task, action events.SwapAction) {
	charger := ""
	if len(t.Steps) > 0 {
		charger = t.Steps[0].StationID
	}
	s.swapBus.Publish(events.SwapEvent{
		RobotID:   t.RobotID,
		TaskID:    t.ID,
		Charger:   charger,
		Action:    action,
		StartTime: t.StartTime,
		Time:      s.clock(),
	})
}

// OnStepStarted records that robotID started step of taskID. The first step
// started on a swap task freezes the swap.
func (s *Service) OnStepStarted(robotID, taskID string, step int) error {
	t, err := s.tasks.StepStarted(robotID, taskID, step)
	if err != nil {
		return err
	}
	st, ok := s.isSwap(robotID, taskID)
	if !ok || st.Phase == battery.SwapInProgress {
		return nil
	}
	if err := s.swaps.SetInProgress(robotID); err != nil {
		return err
	}
	s.publishSwap(t, events.SwapStarted)
	return nil
}

// OnTaskCompleted removes the finished task. A finished swap lets the
// scheduler plan the robot's next one.
func (s *Service) OnTaskCompleted(robotID, taskID string) error {
	t, err := s.tasks.Complete(robotID, taskID)
	if err != nil {
		return err
	}
	if _, ok := s.isSwap(robotID, taskID); !ok {
		if battery.IsSwapTask(taskID) {
			s.cancelPendingSwap(robotID)
		}
		return nil
	}
	if err := s.swaps.SetDone(robotID); err != nil {
		return err
	}
	s.publishSwap(t, events.SwapDone)
	return nil
}

// cancelPendingSwap withdraws the waiting swap of a robot that just finished
// a swap the scheduler had lost track of while the robot was away.
func (s *Service) cancelPendingSwap(robotID string) {
	t, ok := s.swaps.Cancel(robotID)
	if !ok {
		return
	}
	if !s.tasks.Withdraw(t.ID) {
		s.log.Warnf("swap task %s of %s could not be withdrawn", t.ID, robotID)
	}
	s.publishSwap(t, events.SwapCanceled)
}

func (s *Service) onLifecycle(ev coremqtt.Lifecycle) {
	var err error
	switch ev.Event {
	case coremqtt.StepStarted:
		err = s.OnStepStarted(ev.RobotID, ev.TaskID, ev.Step)
	case coremqtt.TaskCompleted:
		err = s.OnTaskCompleted(ev.RobotID, ev.TaskID)
	}
	if err != nil {
		s.log.Errorf("lifecycle %s from %s: %v", ev.Event, ev.RobotID, err)
	}
}

// syncSwaps runs the swap scheduler and merges its output into the store.
func (s *Service) syncSwaps(robots []model.Robot) {
	s.swaps.Run(robots)
	for _, t := range s.swaps.GetDroppedSwapTasks() {
		if !s.tasks.Withdraw(t.ID) {
			s.log.Warnf("swap task %s of %s already started, left in place", t.ID, t.RobotID)
			continue
		}
		s.publishSwap(t, events.SwapCanceled)
	}
	for _, t := range s.swaps.GetNewSwapTasks() {
		if err := s.tasks.Add(t); err != nil {
			s.log.Errorf("swap task %s: %v", t.ID, err)
			continue
		}
		s.publishSwap(t, events.SwapCreated)
	}
	for _, t := range s.swaps.GetTasksToUpdate() {
		if !s.tasks.Reschedule(t.ID, t.StartTime) {
			s.log.Warnf("swap task %s of %s could not be rescheduled", t.ID, t.RobotID)
			continue
		}
		s.publishSwap(t, events.SwapRescheduled)
	}
}

// Tick runs one cycle: swap planning, dispatch, plan log and commands. An
// aborted cycle sends nothing and returns the dispatcher error.
func (s *Service) Tick(ctx context.Context) (dispatch.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock()
	robots := s.fleet.Snapshot(start)
	s.syncSwaps(robots)
	tasks := s.tasks.Snapshot()

	plan, err := s.dispatcher.Cycle(robots, tasks)
	elapsed := s.clock().Sub(start)
	s.record(ctx, start, elapsed, robots, tasks, plan, err)
	if err != nil {
		return dispatch.Plan{}, err
	}
	if err := s.tasks.Assign(plan.Assignments); err != nil {
		return dispatch.Plan{}, err
	}
	s.sendCommands(plan)
	s.relocate(plan)
	return plan, nil
}

func (s *Service) record(ctx context.Context, at time.Time, elapsed time.Duration, robots []model.Robot, tasks []model.Task, plan dispatch.Plan, err error) {
	rec := dispatchlog.LogRecord{
		Timestamp: at,
		CycleID:   plan.CycleID,
		Duration:  elapsed,
	}
	for _, r := range robots {
		rec.Robots = append(rec.Robots, r.ID)
	}
	for _, t := range tasks {
		rec.Tasks = append(rec.Tasks, t.ID)
	}
	ev := events.CycleEvent{
		CycleID:  plan.CycleID,
		Time:     at,
		Duration: elapsed,
		Robots:   len(robots),
		Tasks:    len(tasks),
		Err:      err,
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Plan = &plan
		ev.Moves = len(plan.Moves)
		ev.Assignments = len(plan.Assignments)
		ev.Relocations = len(plan.Relocations)
	}
	if aerr := s.store.Append(ctx, rec); aerr != nil {
		s.log.Errorf("plan log: %v", aerr)
	}
	s.log.Debugw("cycle recorded", map[string]any{
		"cycle_id":    ev.CycleID,
		"duration_ms": elapsed.Milliseconds(),
		"moves":       ev.Moves,
		"assignments": ev.Assignments,
		"aborted":     err != nil,
	})
	s.cycles.Publish(ev)
}

func (s *Service) sendCommands(plan dispatch.Plan) {
	ids := make([]string, 0, len(plan.Moves))
	for id := range plan.Moves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	log := s.log.With("cycle_id", plan.CycleID)
	for _, id := range ids {
		mv := plan.Moves[id]
		cmd := coremqtt.Command{
			CycleID:   plan.CycleID,
			RobotID:   id,
			TaskID:    mv.TaskID,
			NextEdge:  mv.NextEdge,
			EndOfStep: mv.EndOfStep,
			Timestamp: plan.Timestamp,
		}
		if _, err := s.client.SendCommand(cmd); err != nil {
			log.Errorf("command to %s: %v", id, err)
		}
	}
}

// relocate turns each relocation into a parking task pre-assigned to the
// blocking robot.
func (s *Service) relocate(plan dispatch.Plan) {
	now := s.clock()
	for _, rel := range plan.Relocations {
		if rel.StationID == "" || s.tasks.HasActive(rel.RobotID, now) {
			continue
		}
		id := "relocate-" + uuid.NewString()
		t := model.Task{
			ID:         id,
			Steps:      []model.Step{{ID: id + "-0", Kind: model.StepMoveToStation, StationID: rel.StationID}},
			ActiveStep: model.NotStarted,
			Status:     model.TaskAssigned,
			RobotID:    rel.RobotID,
		}
		if err := s.tasks.Add(t); err != nil {
			s.log.Errorf("relocation of %s: %v", rel.RobotID, err)
			continue
		}
		s.log.Infof("robot %s relocates to %s", rel.RobotID, rel.StationID)
	}
}

// Run subscribes to the robots and ticks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	err := s.client.Subscribe(coremqtt.Handlers{
		OnState: func(rec snapshot.RobotRecord) {
			if err := s.UpdateRobot(rec); err != nil {
				s.log.Errorf("state of %s: %v", rec.ID, err)
			}
		},
		OnLifecycle: s.onLifecycle,
		OnTasks: func(recs []snapshot.TaskRecord) {
			if err := s.SubmitTasks(recs); err != nil {
				s.log.Errorf("tasks: %v", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	metrics.StartEventCollector(ctx, s.cycles, s.swapBus, s.sink)
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.api.Addr != "" {
		h := api.NewRouter(s.store, s, s.api.Token)
		go func() {
			if err := api.Serve(ctx, s.api.Addr, h); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	if s.feed.URL != "" {
		go taskfeed.NewPoller(s.feed, s).Start(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warnf("cycle aborted, no command sent: %v", err)
			}
		}
	}
}

// Close disconnects the client and releases the plan log.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.client.Disconnect()
		s.cycles.Close()
		s.swapBus.Close()
		err = s.store.Close()
	})
	return err
}
