package entity

import (
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/clock"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// 导航模块接口
type IRouter interface {
	// 路径规划，从origin节点到destination节点，避开avoid中的路段
	FindRoute(origin, destination int32, avoid map[int32]struct{}) ([]int32, error)
}

type ITaskContext interface {
	Clock() *clock.Clock
	SegmentManager() ISegmentManager
	VehicleManager() IVehicleManager
	EmergencyManager() IEmergencyManager
	Weather() *weather.Weather
	Router() IRouter
	RuntimeConfig() *config.RuntimeConfig
}
