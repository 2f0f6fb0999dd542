package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/segment"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/randengine"
)

// newScanNetwork 两段直线路网，便于构造同段与跨段的扫描场景
func newScanNetwork(t *testing.T) *segment.SegmentManager {
	m := segment.NewManager(nil)
	err := m.Init(&config.Network{
		Nodes: []config.Node{{ID: 1}, {ID: 2, X: 150}, {ID: 3, X: 300}},
		Segments: []config.Segment{
			{ID: 1, From: 1, To: 2, Width: 7, MaxSpeed: 16.7, Quality: 1},
			{ID: 2, From: 2, To: 3, Width: 7, MaxSpeed: 16.7, Quality: 1},
		},
	})
	require.NoError(t, err)
	return m
}

// placeVehicle 在路段上放置一辆给定位置与速度的车辆并加入占用链表
func placeVehicle(seg entity.ISegment, id int32, typ entity.VehicleType, s, offset, v0 float64) *Vehicle {
	length, width := DefaultAttr(typ)
	v := &Vehicle{
		id:        id,
		typ:       typ,
		length:    length,
		width:     width,
		seed:      0.5,
		generator: randengine.New(uint64(id)),
	}
	v.runtime = runtime{
		Status:        entity.VehicleStatusDriving,
		Segment:       seg,
		S:             s,
		LateralOffset: offset,
		V:             v0,
	}
	v.snapshot = v.runtime
	v.node = newVehicleNode(s, v)
	seg.AddVehicle(v.node)
	return v
}

// newPlacedController 为已放置的车辆构造控制器，行为参数取晴天标准值
func newPlacedController(v *Vehicle) *controller {
	seg := v.snapshot.Segment
	return &controller{
		v: v,
		params: Resolve(v.typ, false, v.seed,
			weather.Condition{State: weather.StateClear},
			seg.Quality(), seg.MaxV(), 0.6),
	}
}

// 占用链表按车头位置排序，车长不一时车尾净距顺序与之不同：
// 更远处长车的车尾间距反而可能最小，扫描必须取净间距最小者
func TestScanEnvNearestRearGap(t *testing.T) {
	m := newScanNetwork(t)
	seg := m.Get(1)
	car := placeVehicle(seg, 1, entity.VehicleTypeCar, 85, 0, 10)
	placeVehicle(seg, 2, entity.VehicleTypeMotorcycle, 100, 1.2, 8)
	truck := placeVehicle(seg, 3, entity.VehicleTypeTruck, 101, -1.2, 8)
	m.Prepare()

	c := newPlacedController(car)
	env := c.scanEnv(weather.Condition{State: weather.StateClear})
	require.NotNil(t, env.leader)
	assert.Equal(t, truck.id, env.leader.ID())
	assert.InDelta(t, 1.0, env.leaderGap, 1e-9)

	// 净间距小于最小安全间距，必须无条件紧急制动
	action := c.follow(env)
	assert.Equal(t, c.params.MaxBrakingA, action.A)
	assert.True(t, action.SafetyEvent)
}

// 刚跨段的长车车尾仍在本路段内，其净间距可能小于本路段内前车
func TestScanEnvStraddlingNextSegment(t *testing.T) {
	m := newScanNetwork(t)
	first, second := m.Get(1), m.Get(2)
	car := placeVehicle(first, 1, entity.VehicleTypeCar, 140, 0, 10)
	car.route = []entity.ISegment{first, second}
	placeVehicle(first, 2, entity.VehicleTypeMotorcycle, 148, 0, 8)
	truck := placeVehicle(second, 3, entity.VehicleTypeTruck, 8, 0, 8)
	m.Prepare()

	c := newPlacedController(car)
	env := c.scanEnv(weather.Condition{State: weather.StateClear})
	require.NotNil(t, env.leader)
	assert.Equal(t, truck.id, env.leader.ID())
	assert.InDelta(t, 3.0, env.leaderGap, 1e-9)
}

func TestTargetChannelGap(t *testing.T) {
	m := newScanNetwork(t)
	seg := m.Get(1)
	car := placeVehicle(seg, 1, entity.VehicleTypeCar, 50, 0, 10)
	placeVehicle(seg, 2, entity.VehicleTypeCar, 80, 2.0, 10)
	placeVehicle(seg, 3, entity.VehicleTypeCar, 52, -2.0, 10)
	m.Prepare()

	c := newPlacedController(car)
	// 前向有车的通道：量得车尾净距
	gap, free := c.targetChannelGap(2.0)
	assert.True(t, free)
	assert.InDelta(t, 26.0, gap, 1e-9)

	// 并排占用的通道不可进入
	_, free = c.targetChannelGap(-2.0)
	assert.False(t, free)

	// 空通道前向净距为正无穷
	gap, free = c.targetChannelGap(0)
	assert.True(t, free)
	assert.True(t, math.IsInf(gap, 1))
}

// 前车过慢但左右目标通道均被并排车辆占用时，不得发出超车或挪移请求
func TestPlanRepositionBlockedSlots(t *testing.T) {
	m := newScanNetwork(t)
	seg := m.Get(1)
	car := placeVehicle(seg, 1, entity.VehicleTypeCar, 50, 0, 10)
	placeVehicle(seg, 2, entity.VehicleTypeCar, 60, 0, 2)
	placeVehicle(seg, 3, entity.VehicleTypeCar, 52, -1.2, 10)
	placeVehicle(seg, 4, entity.VehicleTypeCar, 52, 1.2, 10)
	m.Prepare()

	c := newPlacedController(car)
	env := c.scanEnv(weather.Condition{State: weather.StateClear})
	require.NotNil(t, env.leader)
	for i := 0; i < 100; i++ {
		var action Action
		c.planReposition(env, 0.5, &action)
		assert.Nil(t, action.Reposition)
	}
}

// 旁侧通道空闲且间距充裕时，超车请求最终会发出
func TestPlanRepositionOvertakeIntoFreeSlot(t *testing.T) {
	m := newScanNetwork(t)
	seg := m.Get(1)
	car := placeVehicle(seg, 1, entity.VehicleTypeCar, 50, 0, 10)
	placeVehicle(seg, 2, entity.VehicleTypeCar, 60, 0, 2)
	m.Prepare()

	c := newPlacedController(car)
	env := c.scanEnv(weather.Condition{State: weather.StateClear})
	require.InDelta(t, 6.0, env.leaderGap, 1e-9)

	var req *repositionRequest
	for i := 0; i < 200 && req == nil; i++ {
		var action Action
		c.planReposition(env, 0.5, &action)
		req = action.Reposition
	}
	require.NotNil(t, req)
	assert.Equal(t, repositionOvertake, req.reason)
	assert.InDelta(t, 2.3, math.Abs(req.targetOffset), 1e-9)
}
