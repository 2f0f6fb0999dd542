package task

import (
	"sort"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

// VehicleSnapshot 单车状态快照
type VehicleSnapshot struct {
	ID        int32
	Type      entity.VehicleType
	Emergency bool
	Status    entity.VehicleStatus

	SegmentID     int32
	S             float64
	LateralOffset float64
	V             float64
	X, Y          float64
	Heading       float64
}

// Snapshot 仿真状态快照，只读导出面
type Snapshot struct {
	Step int32
	T    float64

	Weather     weather.Condition
	Vehicles    []VehicleSnapshot
	Emergencies []entity.EmergencyInfo
	Metrics     entity.VehicleMetrics
}

// TrafficMetrics 宏观交通统计
// 说明：在途统计由当前车辆状态即时聚合，计数类统计来自车辆管理器
type TrafficMetrics struct {
	entity.VehicleMetrics

	AverageV    float64 // 在途车辆平均速度（米/秒）
	Density     float64 // 路网密度（辆/公里）
	Flow        float64 // 流率（辆/小时），密度×平均速度
	Utilization float64 // 在途车辆数与路网容量估计之比
}

// Metrics 导出聚合统计量
// 说明：拉取式只读接口，只允许在两步之间调用
func (ctx *Context) Metrics() TrafficMetrics {
	m := TrafficMetrics{VehicleMetrics: ctx.vehicleManager.Metrics()}
	vehicles := ctx.vehicleManager.Vehicles()
	if len(vehicles) > 0 {
		sum := 0.0
		for _, v := range vehicles {
			sum += v.V()
		}
		m.AverageV = sum / float64(len(vehicles))
	}
	if totalKm := ctx.segmentManager.TotalLength() / 1000; totalKm > 0 {
		m.Density = float64(len(vehicles)) / totalKm
		m.Flow = m.Density * m.AverageV * 3.6
	}
	if capacity := ctx.segmentManager.TotalCapacity(); capacity > 0 {
		m.Utilization = float64(len(vehicles)) / float64(capacity)
	}
	return m
}

// Snapshot 导出当前仿真状态
// 说明：只允许在两步之间调用；车辆按ID升序，同一状态必然得到同一快照
func (ctx *Context) Snapshot() *Snapshot {
	vehicles := ctx.vehicleManager.Vehicles()
	out := make([]VehicleSnapshot, 0, len(vehicles))
	for _, v := range vehicles {
		xyz := v.XYZ()
		out = append(out, VehicleSnapshot{
			ID:            v.ID(),
			Type:          v.Type(),
			Emergency:     v.IsEmergency(),
			Status:        v.Status(),
			SegmentID:     v.Segment().ID(),
			S:             v.S(),
			LateralOffset: v.LateralOffset(),
			V:             v.V(),
			X:             xyz.X,
			Y:             xyz.Y,
			Heading:       v.Heading(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return &Snapshot{
		Step:        ctx.clock.InternalStep,
		T:           ctx.clock.T,
		Weather:     ctx.weather.Snapshot(),
		Vehicles:    out,
		Emergencies: ctx.emergencyManager.Active(),
		Metrics:     ctx.vehicleManager.Metrics(),
	}
}
