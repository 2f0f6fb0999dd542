package vehicle

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/container"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/randengine"
)

// Vehicle 车辆实体
// 功能：表示混合交通流中的单个交通参与者，包含静态属性、运行时状态与控制器
type Vehicle struct {
	container.IncrementalItemBase
	ctx entity.ITaskContext
	m   *VehicleManager

	// 静态属性
	id        int32
	typ       entity.VehicleType
	emergency bool    // 特权急救车辆
	length    float64 // 车长
	width     float64 // 车宽
	seed      float64 // 个体种子，生成时确定后不再变化

	generator *randengine.Engine // 随机数生成器，以ID为seed

	route       []entity.ISegment // 路径（路段序列）
	destination int32             // 终点节点ID

	node       *entity.VehicleNode // 占用链表节点
	controller *controller         // 车辆控制器

	// 运行时基本数据
	runtime  runtime // 运行时数据
	snapshot runtime // 快照

	needReroute       bool    // 路径途经封闭路段，需在下一步决策前重路由
	blockedSince      float64 // 进入blocked子状态的时刻
	removeReason      string  // 移除原因
	consecutiveDefers int32   // 换位请求被连续推迟的次数

	pendingAction Action // 决策阶段产出，提交阶段消费
}

// newVehicle 创建并初始化一个新的Vehicle实例
// 说明：初始位置为路径第一个路段的起点，横向偏移在可用路宽内随机
func newVehicle(
	ctx entity.ITaskContext,
	m *VehicleManager,
	id int32,
	opt entity.SpawnOptions,
	route []entity.ISegment,
) *Vehicle {
	length, width := DefaultAttr(opt.Type)
	v := &Vehicle{
		ctx:       ctx,
		m:         m,
		id:        id,
		typ:       opt.Type,
		emergency: opt.Emergency,
		length:    length,
		width:     width,
		generator: randengine.New(uint64(id)),
		route:     route,
	}
	v.seed = v.generator.Float64()
	v.destination = route[len(route)-1].ToNode()
	v.controller = newController(v)

	first := route[0]
	half := math.Max((first.Width()-v.width)/2, 0)
	v.runtime = runtime{
		Status:        entity.VehicleStatusDriving,
		Segment:       first,
		RouteIndex:    0,
		S:             v.length,
		LateralOffset: (v.generator.Float64() - 0.5) * half,
		V:             0,
		Heading:       first.Heading(),
	}
	v.runtime.XYZ = first.GetOffsetPositionByS(v.runtime.S, v.runtime.LateralOffset)
	v.node = newVehicleNode(v.runtime.S, v)
	return v
}

// newVehicleNode 创建车辆占用链表节点
func newVehicleNode(s float64, v *Vehicle) *entity.VehicleNode {
	return &entity.VehicleNode{S: s, Value: v}
}

// prepareNode 准备阶段：维护车辆在路段占用链表中的节点
// 算法说明：
// 1. 跨路段时从旧链表摘除并换新节点加入新链表，避免同一对象的增删顺序问题
// 2. 同路段时仅刷新键值，排序由路段prepare完成
func (v *Vehicle) prepareNode() {
	if v.runtime.Status == entity.VehicleStatusFinished {
		if v.node.Parent() != nil {
			v.snapshot.Segment.RemoveVehicle(v.node)
		}
		return
	}
	if v.snapshot.Segment != v.runtime.Segment {
		if v.snapshot.Segment != nil && v.node.Parent() != nil {
			v.snapshot.Segment.RemoveVehicle(v.node)
			v.node = newVehicleNode(v.runtime.S, v)
		}
		v.runtime.Segment.AddVehicle(v.node)
	} else {
		v.node.S = v.runtime.S
	}
}

// prepare 准备阶段：将运行时数据写入快照
func (v *Vehicle) prepare() {
	v.snapshot = v.runtime
}

// decide 决策阶段：只读快照，计算本步动作
func (v *Vehicle) decide(dt float64) {
	if v.runtime.Status != entity.VehicleStatusDriving {
		v.pendingAction = Action{}
		return
	}
	v.pendingAction = v.controller.update(dt)
}

// 静态数据

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle %d (%v)", v.id, v.typ)
}

// 获取车辆ID
func (v *Vehicle) ID() int32 {
	if v == nil {
		return -1
	}
	return v.id
}

// 获取车辆类型
func (v *Vehicle) Type() entity.VehicleType {
	return v.typ
}

// 是否为执行任务的应急车辆
func (v *Vehicle) IsEmergency() bool {
	return v.emergency
}

// PriorityClass 冲突仲裁优先级别，应急车辆恒为最高
func (v *Vehicle) PriorityClass() int32 {
	if v.emergency {
		return entity.PriorityEmergency
	}
	return v.typ.Priority()
}

// 获取车长
func (v *Vehicle) Length() float64 {
	return v.length
}

// 获取车宽
func (v *Vehicle) Width() float64 {
	return v.width
}

// 运行时快照

// 获取车辆所在路段
func (v *Vehicle) Segment() entity.ISegment {
	return v.snapshot.Segment
}

// 获取车辆在路段上的纵向坐标
func (v *Vehicle) S() float64 {
	return v.snapshot.S
}

// 获取车辆相对路段中心线的横向偏移，左负右正
func (v *Vehicle) LateralOffset() float64 {
	return v.snapshot.LateralOffset
}

// 获取车辆速度
func (v *Vehicle) V() float64 {
	return v.snapshot.V
}

// 获取车辆状态
func (v *Vehicle) Status() entity.VehicleStatus {
	return v.snapshot.Status
}

// 获取车辆位置坐标
func (v *Vehicle) XYZ() geometry.Point {
	return v.snapshot.XYZ
}

// 获取车辆朝向角
func (v *Vehicle) Heading() float64 {
	return v.snapshot.Heading
}

// routeContains 路径剩余部分是否途经指定路段集合
func (v *Vehicle) routeContains(segments map[int32]struct{}) bool {
	for i := v.runtime.RouteIndex; i < len(v.route); i++ {
		if _, ok := segments[v.route[i].ID()]; ok {
			return true
		}
	}
	return false
}

// finish 结束车辆生命周期并记录原因
func (v *Vehicle) finish(reason string) {
	v.runtime.Status = entity.VehicleStatusFinished
	v.removeReason = reason
	v.runtime.V = 0
	v.runtime.Action = Action{}
}
