package dispatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/routegraph"
	"github.com/kilianp07/agvfleet/infra/logger"
	"github.com/kilianp07/agvfleet/test/util"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newSiteDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	g, err := routegraph.New(util.SiteNodes(), util.SiteEdges())
	require.NoError(t, err)
	d, err := NewDispatcher(g, util.SiteStations(), cfg, logger.NopLogger{})
	require.NoError(t, err)
	d.SetClock(func() time.Time { return epoch })
	return d
}

func robotAt(id, node string) model.Robot {
	return model.Robot{ID: id, Node: node, PlanningEnabled: true, Ready: true}
}

func robotOn(id, from, to string) model.Robot {
	return model.Robot{ID: id, Edge: model.EdgeKey{From: from, To: to}, PlanningEnabled: true, Ready: true}
}

func moveTask(id, station string) model.Task {
	return model.Task{
		ID:         id,
		Steps:      []model.Step{{ID: id + "-1", Kind: model.StepMoveToStation, StationID: station}},
		ActiveStep: model.NotStarted,
		Weight:     1,
	}
}

// assertEdgeCapacity checks that no edge receives more robots than it admits
// once the plan is applied.
func assertEdgeCapacity(t *testing.T, d *Dispatcher, robots []model.Robot, plan Plan) {
	t.Helper()
	load := map[model.EdgeKey]int{}
	for _, r := range robots {
		if !r.Edge.IsZero() {
			load[r.Edge]++
		}
	}
	for _, m := range plan.Moves {
		load[m.NextEdge]++
	}
	groups := map[int]int{}
	for k, n := range load {
		e, ok := d.Graph().Edge(k)
		require.True(t, ok)
		if e.Group != 0 {
			groups[e.Group] += n
			continue
		}
		assert.LessOrEqual(t, n, e.MaxOccupants, "edge %s over capacity", k)
	}
	for g, n := range groups {
		assert.LessOrEqual(t, n, 1, "group %d over capacity", g)
	}
}

func TestNewDispatcherRejectsUnknownStation(t *testing.T) {
	g, err := routegraph.New(util.SiteNodes(), util.SiteEdges())
	require.NoError(t, err)
	stations := append(util.SiteStations(), model.Station{ID: "ghost", Kind: model.StationParking})
	_, err = NewDispatcher(g, stations, Config{}, logger.NopLogger{})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestCycleAssignsSingleTask(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "a")}, []model.Task{moveTask("t1", util.Parking1)})
	require.NoError(t, err)

	assert.NotEmpty(t, plan.CycleID)
	assert.Equal(t, epoch, plan.Timestamp)
	assert.Equal(t, map[string]string{"r1": "t1"}, plan.Assignments)
	assert.Equal(t, Move{TaskID: "t1", NextEdge: model.EdgeKey{From: "a", To: "b"}}, plan.Moves["r1"])
	assert.Empty(t, plan.Relocations)
}

func TestCycleDoesNotMutateInputs(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	tasks := []model.Task{moveTask("t1", util.Parking1)}
	robots := []model.Robot{robotAt("r1", "a")}
	_, err := d.Cycle(robots, tasks)
	require.NoError(t, err)
	assert.Empty(t, tasks[0].RobotID)
	assert.Equal(t, model.TaskPending, tasks[0].Status)
	assert.Nil(t, robots[0].Task)
}

func TestCyclePicksNearestRobot(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotAt("r1", "a"), robotAt("r2", "c")}
	plan, err := d.Cycle(robots, []model.Task{moveTask("t1", util.Parking1)})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"r2": "t1"}, plan.Assignments)
	assert.Equal(t, model.EdgeKey{From: "c", To: "d"}, plan.Moves["r2"].NextEdge)
	assert.NotContains(t, plan.Moves, "r1")
}

func TestCycleHigherWeightServedFirst(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	low := moveTask("low", util.Parking1)
	high := moveTask("high", util.Parking2)
	high.Weight = 5
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "c")}, []model.Task{low, high})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"r1": "high"}, plan.Assignments)
}

func TestCycleEndOfStepOnLastEdge(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "d")}, []model.Task{moveTask("t1", util.Parking1)})
	require.NoError(t, err)
	assert.Equal(t, Move{TaskID: "t1", NextEdge: model.EdgeKey{From: "d", To: "P1"}, EndOfStep: true}, plan.Moves["r1"])
}

// Scenario C: an occupied single-slot edge leaves the second robot in place.
func TestCycleOccupiedEdgeHoldsRobot(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	r1 := robotOn("r1", "a", "b")
	r1.Ready = false
	robots := []model.Robot{r1, robotAt("r2", "a")}
	plan, err := d.Cycle(robots, []model.Task{moveTask("t1", util.Dock)})
	require.NoError(t, err)

	assert.Equal(t, "t1", plan.Assignments["r2"])
	assert.NotContains(t, plan.Moves, "r2")
	assertEdgeCapacity(t, d, robots, plan)
}

func TestCyclePlannedEdgeCountsAgainstCapacity(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotAt("r1", "c"), robotAt("r2", "c")}
	tasks := []model.Task{moveTask("t1", util.Parking1), moveTask("t2", util.Parking2)}
	plan, err := d.Cycle(robots, tasks)
	require.NoError(t, err)

	assert.Len(t, plan.Assignments, 2)
	assert.Equal(t, "t1", plan.Assignments["r1"])
	assert.Contains(t, plan.Moves, "r1")
	assert.NotContains(t, plan.Moves, "r2")
	assertEdgeCapacity(t, d, robots, plan)
}

func TestCycleGroupBlocksOppositeDirection(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	r1 := robotOn("r1", "d", "e")
	r1.Ready = false
	robots := []model.Robot{r1, robotAt("r2", "e")}
	plan, err := d.Cycle(robots, []model.Task{moveTask("t1", util.Parking1)})
	require.NoError(t, err)

	assert.Equal(t, "t1", plan.Assignments["r2"])
	assert.NotContains(t, plan.Moves, "r2", "e->d shares the spur group with r1")
	assertEdgeCapacity(t, d, robots, plan)
}

func TestCycleGroupInvariantViolation(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotOn("r1", "d", "e"), robotOn("r2", "e", "d")}
	plan, err := d.Cycle(robots, nil)
	assert.ErrorIs(t, err, model.ErrGroupInvariant)
	assert.Empty(t, plan.Moves)
}

func TestCycleBindsStartedTask(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	task := moveTask("t1", util.Dock)
	task.ActiveStep = 0
	task.Status = model.TaskInProgress
	task.RobotID = "r1"
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "b")}, []model.Task{task})
	require.NoError(t, err)
	assert.Equal(t, Move{TaskID: "t1", NextEdge: model.EdgeKey{From: "b", To: "D.dock"}, EndOfStep: true}, plan.Moves["r1"])
}

func TestCycleServiceStepFollowsStationSequence(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	task := model.Task{
		ID: "t1",
		Steps: []model.Step{
			{ID: "s1", Kind: model.StepMoveToStation, StationID: util.Dock},
			{ID: "s2", Kind: model.StepDock},
			{ID: "s3", Kind: model.StepWait},
		},
		ActiveStep: 2,
		Status:     model.TaskInProgress,
		RobotID:    "r1",
	}
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "D.wait")}, []model.Task{task})
	require.NoError(t, err)
	assert.Equal(t, Move{TaskID: "t1", NextEdge: model.EdgeKey{From: "D.wait", To: "D.undock"}, EndOfStep: true}, plan.Moves["r1"])
}

func leavingCharger() model.Task {
	return model.Task{
		ID: "t1",
		Steps: []model.Step{
			{ID: "s1", Kind: model.StepMoveToStation, StationID: util.Charger},
			{ID: "s2", Kind: model.StepSwapBattery},
			{ID: "s3", Kind: model.StepMoveToStation, StationID: util.Parking1},
		},
		ActiveStep: 2,
		Status:     model.TaskInProgress,
		RobotID:    "r1",
	}
}

func TestCycleStartedTaskTowardsFreeStation(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "C.end")}, []model.Task{leavingCharger()})
	require.NoError(t, err)
	assert.Equal(t, Move{TaskID: "t1", NextEdge: model.EdgeKey{From: "C.end", To: "d"}}, plan.Moves["r1"])
}

func TestCycleStartedTaskWaitsForOccupiedStation(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotAt("r1", "C.end"), robotAt("r2", util.Parking1)}
	plan, err := d.Cycle(robots, []model.Task{leavingCharger()})
	require.NoError(t, err)

	assert.Equal(t, "t1", plan.Assignments["r1"], "robot keeps its task")
	assert.NotContains(t, plan.Moves, "r1")
	assert.Empty(t, plan.Relocations, "parking robots never block")
}

func TestCycleAssignmentConflict(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	t1 := moveTask("t1", util.Dock)
	t2 := moveTask("t2", util.Charger)
	for _, task := range []*model.Task{&t1, &t2} {
		task.ActiveStep = 0
		task.Status = model.TaskInProgress
		task.RobotID = "r1"
	}
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "a")}, []model.Task{t1, t2})
	assert.ErrorIs(t, err, model.ErrAssignmentConflict)
	assert.Empty(t, plan.Assignments)
}

func TestCyclePreAssignedTaskKeepsItsRobot(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	task := moveTask("t1", util.Parking1)
	task.RobotID = "r1"
	robots := []model.Robot{robotAt("r1", "a"), robotAt("r2", "c")}
	plan, err := d.Cycle(robots, []model.Task{task})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"r1": "t1"}, plan.Assignments)
}

func TestCycleSkipsFutureTasks(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	later := moveTask("later", util.Parking1)
	later.StartTime = epoch.Add(time.Hour)
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "a")}, []model.Task{later})
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
}

func TestCycleRespectsStationCapacity(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotAt("r1", "a"), robotAt("r2", "c")}
	tasks := []model.Task{moveTask("t1", util.Parking1), moveTask("t2", util.Parking1)}
	plan, err := d.Cycle(robots, tasks)
	require.NoError(t, err)
	assert.Len(t, plan.Assignments, 1, "parking admits a single robot")
}

func TestCycleRejectsMalformedInput(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	cases := map[string]struct {
		robots []model.Robot
		tasks  []model.Task
	}{
		"unknown edge":    {robots: []model.Robot{robotOn("r1", "a", "c")}},
		"unknown node":    {robots: []model.Robot{robotAt("r1", "nowhere")}},
		"duplicate robot": {robots: []model.Robot{robotAt("r1", "a"), robotAt("r1", "b")}},
		"duplicate task":  {tasks: []model.Task{moveTask("t1", util.Dock), moveTask("t1", util.Dock)}},
		"unknown station": {tasks: []model.Task{moveTask("t1", "ghost")}},
		"no steps":        {tasks: []model.Task{{ID: "t1", ActiveStep: model.NotStarted}}},
		"first step not a move": {tasks: []model.Task{{
			ID: "t1", ActiveStep: model.NotStarted,
			Steps: []model.Step{{ID: "s", Kind: model.StepDock}},
		}}},
		"step without goal node": {tasks: []model.Task{{
			ID: "t1", ActiveStep: model.NotStarted,
			Steps: []model.Step{
				{ID: "s1", Kind: model.StepMoveToStation, StationID: util.Parking1},
				{ID: "s2", Kind: model.StepUndock},
			},
		}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Cycle(tc.robots, tc.tasks)
			assert.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

// plainChargerDispatcher serves a loop a -> b -> K -> a where the charger K
// is a single node, plus a parking spur at P.
func plainChargerDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	nodes := []model.Node{{ID: "a"}, {ID: "b"}, {ID: "K", StationID: "K"}, {ID: "P", StationID: "P"}}
	edges := []model.Edge{
		{From: "a", To: "b", Cost: 1, MaxOccupants: 1},
		{From: "b", To: "K", Cost: 1, MaxOccupants: 1, ConnectedStation: "K", CapacityRole: model.CapacityApproach},
		{From: "K", To: "a", Cost: 1, MaxOccupants: 1},
		{From: "a", To: "P", Cost: 1, MaxOccupants: 1},
		{From: "P", To: "a", Cost: 1, MaxOccupants: 1},
	}
	g, err := routegraph.New(nodes, edges)
	require.NoError(t, err)
	d, err := NewDispatcher(g, []model.Station{
		{ID: "K", Kind: model.StationCharger},
		{ID: "P", Kind: model.StationParking},
	}, Config{}, logger.NopLogger{})
	require.NoError(t, err)
	d.SetClock(func() time.Time { return epoch })
	return d
}

func plainSwap(active int) model.Task {
	return model.Task{
		ID: "swap-1",
		Steps: []model.Step{
			{ID: "swap-1-0", Kind: model.StepMoveToStation, StationID: "K"},
			{ID: "swap-1-1", Kind: model.StepSwapBattery},
		},
		ActiveStep: active,
		Status:     model.TaskInProgress,
		RobotID:    "r1",
	}
}

func TestCyclePlainChargerSwap(t *testing.T) {
	d := plainChargerDispatcher(t)

	plan, err := d.Cycle([]model.Robot{robotAt("r1", "b")}, []model.Task{plainSwap(0)})
	require.NoError(t, err)
	assert.Equal(t, Move{TaskID: "swap-1", NextEdge: model.EdgeKey{From: "b", To: "K"}, EndOfStep: true}, plan.Moves["r1"])

	robots := []model.Robot{robotAt("r1", "K"), robotAt("r2", "a")}
	plan, err = d.Cycle(robots, []model.Task{plainSwap(1), moveTask("t2", "P")})
	require.NoError(t, err, "a swap at a single-node charger must not void the cycle")
	assert.NotContains(t, plan.Moves, "r1", "the swap completes where the robot stands")
	assert.Equal(t, "swap-1", plan.Assignments["r1"])
	assert.Equal(t, "t2", plan.Assignments["r2"])
	assert.Equal(t, model.EdgeKey{From: "a", To: "P"}, plan.Moves["r2"].NextEdge)
}

func TestCyclePlanningTimeoutOnClock(t *testing.T) {
	d := newSiteDispatcher(t, Config{PlanningBudgetMS: 10})
	now := epoch
	d.SetClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	plan, err := d.Cycle([]model.Robot{robotAt("r1", "a")}, []model.Task{moveTask("t1", util.Parking1)})
	assert.ErrorIs(t, err, model.ErrPlanningTimeout)
	assert.Empty(t, plan.Moves)
}

func TestCyclePlanningTimeoutOnIterationCap(t *testing.T) {
	d := newSiteDispatcher(t, Config{MaxIterations: 1})
	robots := []model.Robot{robotAt("r1", "a"), robotAt("r2", "c")}
	_, err := d.Cycle(robots, []model.Task{moveTask("t1", util.Parking1)})
	assert.ErrorIs(t, err, model.ErrPlanningTimeout)
}

func TestCycleWithoutTasksTerminates(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	robots := []model.Robot{robotAt("r1", "a"), robotAt("r2", "c"), robotAt("r3", "d")}
	plan, err := d.Cycle(robots, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Moves)
	assert.Empty(t, plan.Relocations)
}

func TestCycleIgnoresPlanningDisabledRobots(t *testing.T) {
	d := newSiteDispatcher(t, Config{})
	r1 := robotAt("r1", "c")
	r1.PlanningEnabled = false
	plan, err := d.Cycle([]model.Robot{r1}, []model.Task{moveTask("t1", util.Parking1)})
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
}

// queueLine is a corridor crossing two queue stations, with a parking spur
// next to each of them. The plain node m keeps the queues apart.
func queueLine(t *testing.T) *Dispatcher {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	nodes := []model.Node{
		{ID: "s"},
		{ID: "m"},
		{ID: "q1", StationID: "Q1"},
		{ID: "q2", StationID: "Q2"},
		{ID: "t", StationID: "T"},
		{ID: "p1", StationID: "P1"},
		{ID: "p2", StationID: "P2"},
	}
	edge := func(from, to string) model.Edge {
		return model.Edge{From: from, To: to, Cost: 1, MaxOccupants: 1}
	}
	edges := []model.Edge{
		edge("s", "q1"), edge("q1", "m"), edge("m", "q2"), edge("q2", "t"), edge("t", "s"),
		edge("q1", "p1"), edge("p1", "s"),
		edge("q2", "p2"), edge("p2", "s"),
	}
	g, err := routegraph.New(nodes, edges)
	require.NoError(t, err)
	stations := []model.Station{
		{ID: "Q1", Kind: model.StationQueue},
		{ID: "Q2", Kind: model.StationQueue},
		{ID: "T", Kind: model.StationDock},
		{ID: "P1", Kind: model.StationParking},
		{ID: "P2", Kind: model.StationParking},
	}
	d, err := NewDispatcher(g, stations, Config{}, logger.NopLogger{})
	require.NoError(t, err)
	d.SetClock(func() time.Time { return epoch })
	return d
}

// Scenario E: idle robots queued on a busy robot's path are relocated in a
// single pass when no task is available.
func TestCycleRelocatesBlockingRobots(t *testing.T) {
	d := queueLine(t)
	task := moveTask("t1", "T")
	task.ActiveStep = 0
	task.Status = model.TaskInProgress
	task.RobotID = "r3"
	robots := []model.Robot{
		robotOn("r1", "s", "q1"),
		robotOn("r2", "m", "q2"),
		robotAt("r3", "s"),
	}
	plan, err := d.Cycle(robots, []model.Task{task})
	require.NoError(t, err)

	assert.Equal(t, []Relocation{{RobotID: "r1", StationID: "P1"}, {RobotID: "r2", StationID: "P2"}}, plan.Relocations)
	assert.NotContains(t, plan.Moves, "r1")
	assert.NotContains(t, plan.Moves, "r2")
	assert.NotContains(t, plan.Moves, "r3", "s->q1 is occupied")
	assertEdgeCapacity(t, d, robots, plan)
}

func TestCycleBlockingRobotServedFirst(t *testing.T) {
	d := queueLine(t)
	busy := moveTask("busy", "T")
	busy.ActiveStep = 0
	busy.Status = model.TaskInProgress
	busy.RobotID = "r3"
	robots := []model.Robot{
		robotOn("r1", "s", "q1"),
		robotAt("r3", "s"),
		robotAt("r4", "p2"),
	}
	plan, err := d.Cycle(robots, []model.Task{busy, moveTask("park", "P1")})
	require.NoError(t, err)
	assert.Equal(t, "park", plan.Assignments["r1"])
	assert.Equal(t, model.EdgeKey{From: "q1", To: "p1"}, plan.Moves["r1"].NextEdge)
	assert.Empty(t, plan.Relocations)
}
