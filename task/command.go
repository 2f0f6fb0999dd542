package task

import (
	"fmt"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

// 命令面
// 说明：所有命令只允许在两步之间调用；校验同步完成，
// 任何一项不通过则整体拒绝且不产生任何状态变化

// SpawnVehicle 生成新车
// 参数：typeName-车辆类型名，emergency-是否为特权急救车，route-路段ID序列
// 返回：分配的车辆ID
func (ctx *Context) SpawnVehicle(typeName string, emergency bool, route []int32) (int32, error) {
	typ, err := entity.ParseVehicleType(typeName)
	if err != nil {
		return 0, fmt.Errorf("spawn_vehicle: %w", err)
	}
	id, err := ctx.vehicleManager.Add(entity.SpawnOptions{
		Type:      typ,
		Emergency: emergency,
		Route:     route,
	})
	if err != nil {
		return 0, fmt.Errorf("spawn_vehicle: %w", err)
	}
	log.Debugf("spawn vehicle %d (%v) route %v", id, typ, route)
	return id, nil
}

// SetWeather 设置全局天气
// 参数：stateName-天气状态名，intensity-强度（0~1）
func (ctx *Context) SetWeather(stateName string, intensity float64) error {
	state, err := weather.ParseState(stateName)
	if err != nil {
		return fmt.Errorf("set_weather: %w", err)
	}
	if err := ctx.weather.Set(state, intensity); err != nil {
		return fmt.Errorf("set_weather: %w", err)
	}
	log.Infof("weather set to %v (intensity=%.2f)", state, intensity)
	return nil
}

// TriggerEmergency 触发应急事件
// 参数：kindName-事件类型名，severity-严重程度（0~1），
// segments-受影响路段，duration-持续时间（秒，0表示无限期）
// 返回：分配的事件ID
func (ctx *Context) TriggerEmergency(
	kindName string, severity float64, segments []int32, duration float64,
) (int32, error) {
	kind, err := entity.ParseEmergencyKind(kindName)
	if err != nil {
		return 0, fmt.Errorf("trigger_emergency: %w", err)
	}
	id, err := ctx.emergencyManager.Trigger(kind, severity, segments, duration)
	if err != nil {
		return 0, fmt.Errorf("trigger_emergency: %w", err)
	}
	return id, nil
}

// ClearEmergency 解除应急事件，精确恢复其对路段的全部作用
func (ctx *Context) ClearEmergency(id int32) error {
	if err := ctx.emergencyManager.Clear(id); err != nil {
		return fmt.Errorf("clear_emergency: %w", err)
	}
	return nil
}

// SetTickDuration 修改时间步长
// 说明：下一步起生效，一步之内步长不变
func (ctx *Context) SetTickDuration(dt float64) error {
	if err := ctx.clock.SetDT(dt); err != nil {
		return fmt.Errorf("set_tick_duration: %w", err)
	}
	log.Infof("tick duration set to %.3fs", dt)
	return nil
}
