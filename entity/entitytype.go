package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/container"
)

// entity/vehicle/vehicle.go的依赖倒置
type IVehicle interface {
	// 自身属性

	ID() int32          // 获取车辆ID
	Type() VehicleType  // 获取车辆类型
	IsEmergency() bool  // 是否为执行任务的应急车辆
	PriorityClass() int32 // 冲突仲裁优先级别，应急车辆恒为最高
	Length() float64    // 获取车长
	Width() float64     // 获取车宽

	// 运行时快照（上一步提交值）

	Segment() ISegment      // 获取车辆所在路段
	S() float64             // 获取车辆在路段上的纵向坐标
	LateralOffset() float64 // 获取车辆相对路段中心线的横向偏移，左负右正
	V() float64             // 获取车辆速度
	Status() VehicleStatus  // 获取车辆状态
	XYZ() geometry.Point    // 获取车辆位置坐标
	Heading() float64       // 获取车辆朝向角

	// print

	String() string
}

// 车辆链表节点类型
type VehicleNode = container.ListNode[IVehicle]

// 车辆链表类型
type VehicleList = container.List[IVehicle]

// entity/segment/segment.go的依赖倒置
type ISegment interface {
	// Print

	String() string

	// getter

	ID() int32        // 获取路段ID
	FromNode() int32  // 获取起点节点ID
	ToNode() int32    // 获取终点节点ID
	Length() float64  // 获取路段长度
	Width() float64   // 获取路段宽度
	MaxV() float64    // 获取路段限速
	Quality() float64 // 获取有效路面质量，0~1，含事件劣化
	IsClosed() bool   // 是否被应急事件封闭

	GetPositionByS(s float64) geometry.Point               // 将路段s坐标转换为xy坐标
	GetOffsetPositionByS(s, offset float64) geometry.Point // 将路段s坐标沿行进方向左右平移offset后转换为xy坐标
	Heading() float64                                      // 获取路段方向角

	// 获取特定位置车辆

	FirstVehicle() *VehicleNode // 获取最后方车辆（s最小）
	LastVehicle() *VehicleNode  // 获取最前方车辆（s最大）
	Vehicles() *VehicleList     // 获取路段上的车辆占用链表
	VehicleCount() int32        // 统计路段上的车辆数

	// 占用链表操作

	AddVehicle(node *VehicleNode)    // 向占用链表中添加车辆（Prepare后生效）
	RemoveVehicle(node *VehicleNode) // 从占用链表中移除车辆（Prepare后生效）

	// 应急事件对路段的作用，均带事件ID引用计数，可精确恢复

	Close(eventID int32)                  // 封闭路段
	Reopen(eventID int32)                 // 解除封闭
	Degrade(eventID int32, factor float64) // 按系数劣化路面质量
	Restore(eventID int32)                // 解除劣化
}
