package task_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/task"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// newLineConfig 一字型路网：1 -10-> 2 -11-> 3 -12-> 4，每段150米
func newLineConfig(total int32, scenario config.Scenario) config.Config {
	return config.Config{
		Network: config.Network{
			Nodes: []config.Node{
				{ID: 1}, {ID: 2, X: 150}, {ID: 3, X: 300}, {ID: 4, X: 450},
			},
			Segments: []config.Segment{
				{ID: 10, From: 1, To: 2, Width: 7, MaxSpeed: 16.7, Quality: 1, Capacity: 20},
				{ID: 11, From: 2, To: 3, Width: 7, MaxSpeed: 16.7, Quality: 1, Capacity: 20},
				{ID: 12, From: 3, To: 4, Width: 7, MaxSpeed: 16.7, Quality: 1, Capacity: 20},
			},
		},
		Control: config.Control{
			Step:           config.ControlStep{Start: 0, Total: total, Interval: 0.5},
			BlockedTimeout: 10,
		},
		Scenario: scenario,
	}
}

// newDiamondConfig 在一字型路网上追加旁路 2 -21-> 4
func newDiamondConfig(total int32, scenario config.Scenario) config.Config {
	c := newLineConfig(total, scenario)
	c.Network.Segments = append(c.Network.Segments,
		config.Segment{ID: 21, From: 2, To: 4, Width: 7, MaxSpeed: 16.7, Quality: 1})
	return c
}

func newTestContext(t *testing.T, c config.Config) *task.Context {
	ctx := task.NewContext("test", c)
	require.NoError(t, ctx.Init())
	return ctx
}

func runSteps(ctx *task.Context, n int) {
	for i := 0; i < n; i++ {
		ctx.Step()
	}
}

func TestVehicleArrival(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(400, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
		},
	}))
	runSteps(ctx, 400)

	snap := ctx.Snapshot()
	assert.Empty(t, snap.Vehicles)
	assert.Equal(t, int32(1), snap.Metrics.FinishedCount)
	assert.Zero(t, snap.Metrics.RemovedCount)
	assert.Zero(t, snap.Metrics.DrivingCount)
}

func TestStateBoundsDuringRun(t *testing.T) {
	// 错峰生成，极速相近的车型在前，慢车殿后
	ctx := newTestContext(t, newLineConfig(300, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
			{Time: 8, Type: "motorcycle", Route: []int32{10, 11, 12}},
			{Time: 16, Type: "bus", Route: []int32{10, 11, 12}},
			{Time: 24, Type: "truck", Route: []int32{10, 11, 12}},
			{Time: 32, Type: "bicycle", Route: []int32{10, 11, 12}},
		},
	}))
	for i := 0; i < 300; i++ {
		ctx.Step()
		for _, v := range ctx.Snapshot().Vehicles {
			assert.GreaterOrEqual(t, v.V, 0.0, "vehicle %d", v.ID)
			// 限速16.7，个体差异上浮不超过5%
			assert.LessOrEqual(t, v.V, 16.7*1.05+1e-9, "vehicle %d", v.ID)

			assert.GreaterOrEqual(t, v.S, 0.0, "vehicle %d", v.ID)
			assert.LessOrEqual(t, v.S, 150+1e-9, "vehicle %d", v.ID)

			_, width := vehicle.DefaultAttr(v.Type)
			assert.LessOrEqual(t, math.Abs(v.LateralOffset), (7-width)/2+1e-9,
				"vehicle %d", v.ID)
			assert.False(t, math.IsNaN(v.Heading), "vehicle %d", v.ID)
		}
	}
}

func TestNoOverlappingOccupancy(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(300, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
			{Time: 8, Type: "motorcycle", Route: []int32{10, 11, 12}},
			{Time: 16, Type: "auto_rickshaw", Route: []int32{10, 11, 12}},
			{Time: 24, Type: "bus", Route: []int32{10, 11, 12}},
			{Time: 32, Type: "truck", Route: []int32{10, 11, 12}},
		},
	}))
	for i := 0; i < 300; i++ {
		ctx.Step()
		vehicles := ctx.Snapshot().Vehicles
		for i := 0; i < len(vehicles); i++ {
			for j := i + 1; j < len(vehicles); j++ {
				a, b := vehicles[i], vehicles[j]
				if a.SegmentID != b.SegmentID {
					continue
				}
				lenA, widthA := vehicle.DefaultAttr(a.Type)
				lenB, widthB := vehicle.DefaultAttr(b.Type)
				lateral := math.Abs(a.LateralOffset-b.LateralOffset) < (widthA+widthB)/2
				longitudinal := a.S-lenA < b.S && b.S-lenB < a.S
				assert.False(t, lateral && longitudinal,
					"vehicles %d and %d overlap on segment %d", a.ID, b.ID, a.SegmentID)
			}
		}
	}
}

func TestFloodingBlockedTimeout(t *testing.T) {
	// 唯一路径被洪水封闭：车辆停稳后转入blocked，超时后移除
	c := newLineConfig(300, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11}},
		},
		Emergencies: []config.Emergency{
			{Time: 1, Kind: "flooding", Segments: []int32{11}, Severity: 1},
		},
	})
	ctx := newTestContext(t, c)

	sawBlocked := false
	for i := 0; i < 300; i++ {
		ctx.Step()
		for _, v := range ctx.Snapshot().Vehicles {
			if v.Status == entity.VehicleStatusBlocked {
				sawBlocked = true
				assert.Zero(t, v.V)
			}
		}
	}
	assert.True(t, sawBlocked)

	snap := ctx.Snapshot()
	assert.Empty(t, snap.Vehicles)
	assert.Zero(t, snap.Metrics.FinishedCount)
	assert.Equal(t, int32(1), snap.Metrics.RemovedCount)
	assert.Equal(t, int64(1),
		snap.Metrics.RemovalsByReason[entity.RemoveReasonRouteUnavailable])
}

func TestRerouteAroundClosure(t *testing.T) {
	// 原路径途经的路段被封闭，但存在旁路：车辆改道后正常到达
	ctx := newTestContext(t, newDiamondConfig(300, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
		},
		Emergencies: []config.Emergency{
			{Time: 1, Kind: "flooding", Segments: []int32{11}, Severity: 1},
		},
	}))

	usedBypass := false
	for i := 0; i < 300; i++ {
		ctx.Step()
		for _, v := range ctx.Snapshot().Vehicles {
			if v.SegmentID == 21 {
				usedBypass = true
			}
		}
	}
	assert.True(t, usedBypass)

	snap := ctx.Snapshot()
	assert.Equal(t, int32(1), snap.Metrics.FinishedCount)
	assert.Zero(t, snap.Metrics.RemovedCount)
}

func TestEmergencyDegradeAndRestore(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(100, config.Scenario{}))
	seg := ctx.SegmentManager().Get(11)
	require.Equal(t, 1.0, seg.Quality())

	// 事故按严重程度劣化路面质量
	id1, err := ctx.TriggerEmergency("accident", 0.5, []int32{11}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, seg.Quality(), 1e-9)

	// 同一路段叠加更重的事件，有效质量取更劣者
	id2, err := ctx.TriggerEmergency("construction", 1.0, []int32{11}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, seg.Quality(), 1e-9)
	assert.Len(t, ctx.Snapshot().Emergencies, 2)

	// 逐个解除，每一步都精确恢复到该事件生效前的值
	require.NoError(t, ctx.ClearEmergency(id2))
	assert.InDelta(t, 0.7, seg.Quality(), 1e-9)
	require.NoError(t, ctx.ClearEmergency(id1))
	assert.Equal(t, 1.0, seg.Quality())
	assert.Empty(t, ctx.Snapshot().Emergencies)
}

func TestEmergencyExpiry(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(100, config.Scenario{
		Emergencies: []config.Emergency{
			{Time: 0, Kind: "road_closure", Segments: []int32{11}, Severity: 1, Duration: 5},
		},
	}))
	seg := ctx.SegmentManager().Get(11)

	runSteps(ctx, 4) // T=2
	assert.True(t, seg.IsClosed())
	require.Len(t, ctx.Snapshot().Emergencies, 1)
	assert.Equal(t, entity.EmergencyRoadClosure, ctx.Snapshot().Emergencies[0].Kind)

	runSteps(ctx, 10) // T=7，事件到期自动解除
	assert.False(t, seg.IsClosed())
	assert.Empty(t, ctx.Snapshot().Emergencies)
}

func TestWeatherSlowsTraffic(t *testing.T) {
	run := func(w *config.Weather) float64 {
		scenario := config.Scenario{
			Weather: w,
			Spawns: []config.Spawn{
				{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
			},
		}
		ctx := newTestContext(t, newLineConfig(60, scenario))
		maxV := 0.0
		for i := 0; i < 60; i++ {
			ctx.Step()
			for _, v := range ctx.Snapshot().Vehicles {
				maxV = math.Max(maxV, v.V)
			}
		}
		return maxV
	}

	clear := run(nil)
	rain := run(&config.Weather{State: "heavy_rain", Intensity: 1})
	assert.Less(t, rain, clear)
	// 大雨强度1：速度系数0.6×0.8
	assert.LessOrEqual(t, rain, 16.7*0.48*1.05+1e-9)
}

func TestSetWeatherCommand(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(10, config.Scenario{}))

	require.NoError(t, ctx.SetWeather("fog", 0.5))
	cond := ctx.Snapshot().Weather
	assert.Equal(t, weather.StateFog, cond.State)
	assert.Equal(t, 0.5, cond.Intensity)

	// 非法参数整体拒绝，原状态不变
	assert.Error(t, ctx.SetWeather("sunny", 0))
	assert.Error(t, ctx.SetWeather("heavy_rain", 1.5))
	assert.Equal(t, cond, ctx.Snapshot().Weather)
}

func TestInvalidCommandsRejectedAtomically(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(20, config.Scenario{}))

	// 非法生成请求：未知类型、空路径、未知路段、路径不连续
	_, err := ctx.SpawnVehicle("hovercraft", false, []int32{10})
	assert.Error(t, err)
	_, err = ctx.SpawnVehicle("car", false, nil)
	assert.Error(t, err)
	_, err = ctx.SpawnVehicle("car", false, []int32{10, 99})
	assert.Error(t, err)
	_, err = ctx.SpawnVehicle("car", false, []int32{10, 12})
	assert.Error(t, err)

	// 非法应急事件：未知类型、严重程度越界、未知路段
	_, err = ctx.TriggerEmergency("alien_invasion", 0.5, []int32{10}, 0)
	assert.Error(t, err)
	_, err = ctx.TriggerEmergency("accident", 1.5, []int32{10}, 0)
	assert.Error(t, err)
	_, err = ctx.TriggerEmergency("accident", 0.5, []int32{10, 99}, 0)
	assert.Error(t, err)
	assert.Error(t, ctx.ClearEmergency(42))

	assert.Error(t, ctx.SetTickDuration(0))

	runSteps(ctx, 5)
	snap := ctx.Snapshot()
	assert.Empty(t, snap.Vehicles)
	assert.Empty(t, snap.Emergencies)
	// 被拒绝的事件不得留下任何路况痕迹
	assert.Equal(t, 1.0, ctx.SegmentManager().Get(10).Quality())
}

func TestSpawnOnClosedSegmentRejected(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(20, config.Scenario{}))
	_, err := ctx.TriggerEmergency("road_closure", 1, []int32{10}, 0)
	require.NoError(t, err)

	_, err = ctx.SpawnVehicle("car", false, []int32{10, 11})
	assert.Error(t, err)
}

func TestSetTickDuration(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(20, config.Scenario{}))
	require.NoError(t, ctx.SetTickDuration(0.25))

	before := ctx.Snapshot().T
	ctx.Step()
	assert.InDelta(t, 0.25, ctx.Snapshot().T-before, 1e-9)
}

func TestEmergencyVehicleFlag(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(20, config.Scenario{}))
	id, err := ctx.SpawnVehicle("car", true, []int32{10, 11, 12})
	require.NoError(t, err)

	ctx.Step()
	snap := ctx.Snapshot()
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, id, snap.Vehicles[0].ID)
	assert.True(t, snap.Vehicles[0].Emergency)
}

func TestTrafficMetrics(t *testing.T) {
	ctx := newTestContext(t, newLineConfig(100, config.Scenario{
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
			{Time: 2, Type: "motorcycle", Route: []int32{10, 11, 12}},
		},
	}))
	runSteps(ctx, 40) // T=20，两车均已提速且未到达

	m := ctx.Metrics()
	assert.Equal(t, int32(2), m.DrivingCount)
	assert.Greater(t, m.AverageV, 0.0)
	// 路网总长450米，容量60辆，2辆在途
	assert.InDelta(t, 2/0.45, m.Density, 1e-9)
	assert.InDelta(t, m.Density*m.AverageV*3.6, m.Flow, 1e-9)
	assert.InDelta(t, 2.0/60, m.Utilization, 1e-9)
}

// 慢车领头、后车持续聚集的饱和场景：低优先级车辆的换位等待必须有界，
// 不随运行长度增长（连续推迟达到阈值后提升为最高级别）
func TestRepositionWaitBoundedUnderSaturation(t *testing.T) {
	spawns := []config.Spawn{
		{Time: 0, Type: "bicycle", Route: []int32{10, 11, 12}},
	}
	types := []string{
		"motorcycle", "car", "auto_rickshaw", "motorcycle",
		"car", "motorcycle", "auto_rickshaw", "car",
	}
	for i, typ := range types {
		spawns = append(spawns, config.Spawn{
			Time: float64(4 * (i + 1)), Type: typ, Route: []int32{10, 11, 12},
		})
	}
	ctx := newTestContext(t, newLineConfig(500, config.Scenario{Spawns: spawns}))
	runSteps(ctx, 500) // T=250，全部车辆足以跑完450米

	m := ctx.Metrics()
	assert.Equal(t, int32(9), m.FinishedCount)
	assert.Zero(t, m.RemovedCount)
	assert.Greater(t, m.RepositionGrants, int64(0))
	// 等待上界：提升阈值之后的请求以最高级别参与仲裁
	assert.LessOrEqual(t, m.MaxConsecutiveDefers, int32(16))
}

func TestDeterministicReplay(t *testing.T) {
	scenario := config.Scenario{
		Weather: &config.Weather{State: "light_rain", Intensity: 0.5},
		Spawns: []config.Spawn{
			{Time: 0, Type: "car", Route: []int32{10, 11, 12}},
			{Time: 5, Type: "motorcycle", Route: []int32{10, 11, 12}},
			{Time: 10, Type: "bus", Route: []int32{10, 11, 12}},
		},
		Emergencies: []config.Emergency{
			{Time: 15, Kind: "accident", Segments: []int32{11}, Severity: 0.6, Duration: 20},
		},
	}
	run := func() *task.Snapshot {
		ctx := newTestContext(t, newLineConfig(100, scenario))
		runSteps(ctx, 100)
		return ctx.Snapshot()
	}

	first := run()
	second := run()
	assert.Equal(t, first.Vehicles, second.Vehicles)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Emergencies, second.Emergencies)
}
