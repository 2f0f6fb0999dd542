package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

// newTestFollowController 构造给定车速下的控制器，行为参数取晴天标准值
func newTestFollowController(typ entity.VehicleType, v0 float64) *controller {
	veh := &Vehicle{typ: typ, width: 1.8, length: 4}
	veh.snapshot.V = v0
	return &controller{
		v: veh,
		params: Resolve(typ, false, 0.5,
			weather.Condition{State: weather.StateClear}, 1, 16.7, 0.6),
	}
}

func TestFollowEmergencyBrakeBelowMinGap(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeCar, 10)
	env := &vehicleEnv{leader: &Vehicle{}, leaderGap: c.params.MinGap}

	action := c.follow(env)
	assert.Equal(t, c.params.MaxBrakingA, action.A)
	assert.True(t, action.SafetyEvent)
}

func TestFollowFreeBeyondDesiredGap(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeCar, 10)
	env := &vehicleEnv{leader: &Vehicle{}, leaderGap: c.desiredGap(10) + 1}

	action := c.follow(env)
	assert.Greater(t, action.A, 0.0)
	assert.False(t, action.SafetyEvent)
}

func TestFollowDeficitBraking(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeCar, 10)
	gap := (c.params.MinGap + c.desiredGap(10)) / 2
	env := &vehicleEnv{leader: &Vehicle{}, leaderGap: gap}

	action := c.follow(env)
	// 常规制动，不触发无条件紧急制动
	assert.Less(t, action.A, 0.0)
	assert.Greater(t, action.A, c.params.MaxBrakingA)
	assert.False(t, action.SafetyEvent)
}

func TestFollowNoLeaderFreeFlow(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeCar, 0)
	action := c.follow(&vehicleEnv{})
	assert.InDelta(t, c.params.MaxA, action.A, 1e-9)
}

func TestFreeDeceleratesAboveCap(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeCar, 0)
	c.v.snapshot.V = c.params.SpeedCap * 1.2
	assert.Less(t, c.free().A, 0.0)
}

func TestDesiredGapGrowsWithSpeed(t *testing.T) {
	c := newTestFollowController(entity.VehicleTypeBus, 0)
	assert.Less(t, c.desiredGap(5), c.desiredGap(15))
	assert.InDelta(t, c.params.MinGap, c.desiredGap(0), 1e-9)
}

func TestComputeVAndDistance(t *testing.T) {
	// 正常推进
	v, ds := computeVAndDistance(10, 2, 0.5)
	assert.InDelta(t, 11.0, v, 1e-9)
	assert.InDelta(t, 5.25, ds, 1e-9)

	// 刹车到停止：速度归零，距离为v²/2|a|
	v, ds = computeVAndDistance(2, -4, 1)
	assert.Zero(t, v)
	assert.InDelta(t, 0.5, ds, 1e-9)

	// 静止不动
	v, ds = computeVAndDistance(0, 0, 0.5)
	assert.Zero(t, v)
	assert.Zero(t, ds)
}

func TestActionMinCombine(t *testing.T) {
	a := Action{A: 1}
	a.Update(Action{A: -3, SafetyEvent: true}, Action{A: 0.5})
	assert.Equal(t, -3.0, a.A)
	assert.True(t, a.SafetyEvent)
}

func TestSetBrakeAcc(t *testing.T) {
	a := Action{A: 2}
	a.SetBrakeAcc(10, 10)
	assert.InDelta(t, -5.0, a.A, 1e-9)

	// 静止或目标已越过时不生效
	b := Action{A: 2}
	b.SetBrakeAcc(10, 0)
	assert.Equal(t, 2.0, b.A)
	b.SetBrakeAcc(-1, 10)
	assert.Equal(t, 2.0, b.A)
}

func TestPickSide(t *testing.T) {
	// 两侧可用时取更靠近路中的一侧
	got, ok := pickSide(-0.5, 2.0, 2.5)
	assert.True(t, ok)
	assert.Equal(t, -0.5, got)

	// 仅一侧在路宽内
	got, ok = pickSide(-4.0, 1.0, 2.5)
	assert.True(t, ok)
	assert.Equal(t, 1.0, got)

	// 两侧都越界
	_, ok = pickSide(-4.0, 4.0, 2.5)
	assert.False(t, ok)
}
