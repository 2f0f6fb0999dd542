package entity

import (
	"fmt"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// Manager依赖倒置

// entity/segment/manager.go的依赖倒置
type ISegmentManager interface {
	Init(network *config.Network) error // 初始化

	// 输入Segment ID，查找Segment，如果不存在则panic
	Get(id int32) ISegment
	// 输入Segment ID，查找Segment，如果不存在则返回error
	GetOrError(id int32) (ISegment, error)

	Segments() map[int32]ISegment        // 获取所有路段
	SegmentsFromNode(node int32) []ISegment // 获取以node为起点的路段，按ID升序
	HasNode(node int32) bool             // 判断节点是否存在
	TotalLength() float64                // 获取路网总长度
	TotalCapacity() int32                // 获取路网容量估计（辆）

	Prepare() // 准备阶段
}

// 新车生成参数
type SpawnOptions struct {
	Type      VehicleType // 车辆类型
	Emergency bool        // 是否为执行任务的应急车辆
	Route     []int32     // 路段ID序列，相邻路段必须首尾相接
}

// 车辆相关的统计量，每步更新阶段结束后由任务循环收集
type VehicleMetrics struct {
	DrivingCount  int32 // 正常行驶车辆数
	BlockedCount  int32 // 阻塞车辆数
	FinishedCount int32 // 累计到达车辆数
	RemovedCount  int32 // 累计异常移除车辆数（阻塞超时/状态损坏）

	RemovalsByReason map[string]int64 // 按移除原因统计的异常移除数

	SafetyEvents     int64           // 累计触发无条件紧急制动的车次
	RepositionGrants int64           // 累计获准执行的换位数
	RepositionDefers int64           // 累计被推迟的换位数
	DefersByPriority map[int32]int64 // 按优先级别统计的推迟次数，用于观察低优先级饥饿
	MaxConsecutiveDefers int32       // 单车连续被推迟的历史最大值
}

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	Init(ctx ITaskContext) // 初始化

	// 添加新车（同步校验，Prepare后生效），返回分配的车辆ID
	Add(opt SpawnOptions) (int32, error)

	// 输入Vehicle ID，查找Vehicle，如果不存在则panic
	Get(id int32) IVehicle
	// 输入Vehicle ID，查找Vehicle，如果不存在则返回error
	GetOrError(id int32) (IVehicle, error)

	// 通知所有路线途经closed中路段的车辆在下一步决策前重路由
	FlagReroute(closed map[int32]struct{})

	PrepareNode()      // 准备阶段：占用链表节点更新
	Prepare()          // 准备阶段：snapshot更新
	Update(dt float64) // 更新阶段：决策-仲裁-提交

	Vehicles() map[int32]IVehicle // 获取所有在途车辆
	Metrics() VehicleMetrics      // 获取统计量
}

// EmergencyKind 应急事件类型
type EmergencyKind int32

const (
	EmergencyAccident     EmergencyKind = iota // 交通事故
	EmergencyFlooding                          // 积水/内涝
	EmergencyConstruction                      // 道路施工
	EmergencyRoadClosure                       // 道路封闭
	EmergencyBreakdown                         // 车辆抛锚
)

var emergencyKindNames = map[EmergencyKind]string{
	EmergencyAccident:     "accident",
	EmergencyFlooding:     "flooding",
	EmergencyConstruction: "construction",
	EmergencyRoadClosure:  "road_closure",
	EmergencyBreakdown:    "breakdown",
}

// ParseEmergencyKind 解析应急事件类型名
func ParseEmergencyKind(s string) (EmergencyKind, error) {
	for kind, name := range emergencyKindNames {
		if name == s {
			return kind, nil
		}
	}
	return EmergencyAccident, fmt.Errorf("entity: unknown emergency kind %q", s)
}

func (k EmergencyKind) String() string {
	if name, ok := emergencyKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EmergencyKind(%d)", int32(k))
}

// 活跃应急事件的对外快照
type EmergencyInfo struct {
	ID       int32
	Kind     EmergencyKind
	Severity float64
	Segments []int32
	StartT   float64
	Duration float64 // 0表示无限期，等待显式解除
}

// entity/emergency/manager.go的依赖倒置
type IEmergencyManager interface {
	Init(ctx ITaskContext) // 初始化

	// 触发应急事件（同步校验），返回分配的事件ID
	// duration为0表示无限期，否则到期自动解除
	Trigger(kind EmergencyKind, severity float64, segments []int32, duration float64) (int32, error)
	// 解除应急事件，精确恢复其对路段的全部作用
	Clear(id int32) error

	Update() // 更新阶段：解除到期事件

	Active() []EmergencyInfo // 获取所有活跃事件
}
