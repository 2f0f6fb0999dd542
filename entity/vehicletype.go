package entity

import "fmt"

// VehicleType 混合交通流中的车辆类型
type VehicleType int32

const (
	VehicleTypeCar          VehicleType = iota // 小汽车
	VehicleTypeMotorcycle                      // 摩托车
	VehicleTypeAutoRickshaw                    // 机动三轮车
	VehicleTypeBus                             // 公交车
	VehicleTypeTruck                           // 卡车
	VehicleTypeBicycle                         // 自行车
)

var vehicleTypeNames = map[VehicleType]string{
	VehicleTypeCar:          "car",
	VehicleTypeMotorcycle:   "motorcycle",
	VehicleTypeAutoRickshaw: "auto_rickshaw",
	VehicleTypeBus:          "bus",
	VehicleTypeTruck:        "truck",
	VehicleTypeBicycle:      "bicycle",
}

// ParseVehicleType 解析车辆类型名
func ParseVehicleType(s string) (VehicleType, error) {
	for typ, name := range vehicleTypeNames {
		if name == s {
			return typ, nil
		}
	}
	return VehicleTypeCar, fmt.Errorf("entity: unknown vehicle type %q", s)
}

func (t VehicleType) String() string {
	if name, ok := vehicleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("VehicleType(%d)", int32(t))
}

// 冲突仲裁的优先级别，数值越小优先级越高
const (
	PriorityEmergency    = 1 // 执行任务的应急车辆
	PriorityBus          = 2
	PriorityTruck        = 3
	PriorityCar          = 4
	PriorityAutoRickshaw = 5
	PriorityMotorcycle   = 6
	PriorityBicycle      = 7
)

var vehicleTypePriorities = map[VehicleType]int32{
	VehicleTypeBus:          PriorityBus,
	VehicleTypeTruck:        PriorityTruck,
	VehicleTypeCar:          PriorityCar,
	VehicleTypeAutoRickshaw: PriorityAutoRickshaw,
	VehicleTypeMotorcycle:   PriorityMotorcycle,
	VehicleTypeBicycle:      PriorityBicycle,
}

// Priority 车辆类型对应的冲突优先级
func (t VehicleType) Priority() int32 {
	if p, ok := vehicleTypePriorities[t]; ok {
		return p
	}
	return PriorityBicycle
}

// VehicleStatus 车辆运行状态
type VehicleStatus int32

const (
	VehicleStatusDriving  VehicleStatus = iota // 正常行驶
	VehicleStatusBlocked                       // 无路可走，原地等待重路由
	VehicleStatusFinished                      // 已到达终点，待移除
)

func (s VehicleStatus) String() string {
	switch s {
	case VehicleStatusDriving:
		return "driving"
	case VehicleStatusBlocked:
		return "blocked"
	case VehicleStatusFinished:
		return "finished"
	}
	return fmt.Sprintf("VehicleStatus(%d)", int32(s))
}

// 车辆移除原因
const (
	RemoveReasonArrived          = "ARRIVED"           // 正常到达终点
	RemoveReasonRouteUnavailable = "ROUTE_UNAVAILABLE" // 阻塞超时且重路由持续失败
	RemoveReasonStateCorruption  = "STATE_CORRUPTION"  // 运行时状态损坏
)
