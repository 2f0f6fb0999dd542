package segment

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// Segment 路段实体
// 功能：表示路网中的一条有向路段，包含几何信息、路面质量、封闭状态与车辆占用索引
// 说明：混合交通流下路段不划分车道，车辆以连续横向偏移共享整个路面宽度
type Segment struct {
	ctx entity.ITaskContext

	id       int32
	fromNode int32 // 起点节点ID
	toNode   int32 // 终点节点ID

	fromPt  geometry.Point // 起点坐标
	toPt    geometry.Point // 终点坐标
	heading float64        // 方向角（atan2）

	length   float64 // 路段长度
	width    float64 // 路段宽度
	maxV     float64 // 路段限速
	capacity int32   // 容量估计（辆），用于路网占用率统计

	baseQuality float64 // 基础路面质量，0~1

	// 应急事件作用，键为事件ID，严格引用计数，解除时精确恢复
	closureRefs    map[int32]struct{} // 封闭事件集合
	degradeFactors map[int32]float64  // 劣化事件ID -> 质量系数

	vehicles segmentList[entity.IVehicle]
}

// newSegment 创建并初始化一个新的Segment实例
// 功能：根据配置数据创建Segment对象，计算几何属性
// 参数：ctx-任务上下文，base-路段配置，from/to-端点坐标
// 说明：长度未给出时按端点欧氏距离推算
func newSegment(ctx entity.ITaskContext, base *config.Segment, from, to geometry.Point) *Segment {
	length := base.Length
	if length <= 0 {
		length = math.Hypot(to.X-from.X, to.Y-from.Y)
	}
	s := &Segment{
		ctx:            ctx,
		id:             base.ID,
		fromNode:       base.From,
		toNode:         base.To,
		fromPt:         from,
		toPt:           to,
		heading:        math.Atan2(to.Y-from.Y, to.X-from.X),
		length:         length,
		width:          base.Width,
		maxV:           base.MaxSpeed,
		capacity:       base.Capacity,
		baseQuality:    lo.Clamp(base.Quality, 0.05, 1),
		closureRefs:    make(map[int32]struct{}),
		degradeFactors: make(map[int32]float64),
		vehicles: newSegmentList[entity.IVehicle](
			fmt.Sprintf("segment %d vehicles", base.ID),
		),
	}
	return s
}

// prepare 准备阶段，维护本路段占用链表
func (s *Segment) prepare() {
	s.vehicles.prepare()
}

// 静态数据

func (s *Segment) String() string {
	return fmt.Sprintf("Segment %d", s.id)
}

// 获取路段ID
func (s *Segment) ID() int32 {
	if s == nil {
		return -1
	}
	return s.id
}

// 获取起点节点ID
func (s *Segment) FromNode() int32 {
	return s.fromNode
}

// 获取终点节点ID
func (s *Segment) ToNode() int32 {
	return s.toNode
}

// 获取路段长度
func (s *Segment) Length() float64 {
	return s.length
}

// 获取路段宽度
func (s *Segment) Width() float64 {
	return s.width
}

// 获取路段限速
func (s *Segment) MaxV() float64 {
	return s.maxV
}

// Quality 获取有效路面质量
// 说明：基础质量乘以所有活跃劣化事件中最严苛的系数
func (s *Segment) Quality() float64 {
	q := s.baseQuality
	factor := 1.0
	for _, f := range s.degradeFactors {
		if f < factor {
			factor = f
		}
	}
	return lo.Clamp(q*factor, 0.05, 1)
}

// 是否被应急事件封闭
func (s *Segment) IsClosed() bool {
	return len(s.closureRefs) > 0
}

// 几何

// 获取路段方向角
func (s *Segment) Heading() float64 {
	return s.heading
}

// 将路段s坐标转换为xy坐标
func (s *Segment) GetPositionByS(sPos float64) geometry.Point {
	k := lo.Clamp(sPos/s.length, 0, 1)
	return geometry.Blend(s.fromPt, s.toPt, k)
}

// 将路段s坐标沿行进方向左右平移offset后转换为xy坐标，offset左负右正
func (s *Segment) GetOffsetPositionByS(sPos, offset float64) geometry.Point {
	pos := s.GetPositionByS(sPos)
	unitNormal := geometry.Point{X: math.Cos(s.heading - math.Pi/2), Y: math.Sin(s.heading - math.Pi/2)}
	return geometry.Point{X: pos.X + unitNormal.X*offset, Y: pos.Y + unitNormal.Y*offset, Z: pos.Z}
}

// 应急事件作用
// 说明：仅在两步之间由应急管理器串行调用，无需加锁

// Close 封闭路段
func (s *Segment) Close(eventID int32) {
	s.closureRefs[eventID] = struct{}{}
}

// Reopen 解除封闭
// 说明：被多个事件封闭时，全部事件解除后才恢复通行
func (s *Segment) Reopen(eventID int32) {
	delete(s.closureRefs, eventID)
}

// Degrade 按系数劣化路面质量
func (s *Segment) Degrade(eventID int32, factor float64) {
	s.degradeFactors[eventID] = lo.Clamp(factor, 0.05, 1)
}

// Restore 解除劣化，其余事件的作用保持不变
func (s *Segment) Restore(eventID int32) {
	delete(s.degradeFactors, eventID)
}

// 车辆更新相关函数

// 获取路段上的车辆占用链表
func (s *Segment) Vehicles() *entity.VehicleList {
	return s.vehicles.list
}

// 统计路段上的车辆数
func (s *Segment) VehicleCount() int32 {
	return int32(s.vehicles.list.Len())
}

// 向占用链表中添加车辆（Prepare后生效）
func (s *Segment) AddVehicle(node *entity.VehicleNode) {
	s.vehicles.add(node)
}

// 从占用链表中移除车辆（Prepare后生效）
func (s *Segment) RemoveVehicle(node *entity.VehicleNode) {
	s.vehicles.remove(node)
}

// 获取最后方车辆（s最小）
func (s *Segment) FirstVehicle() *entity.VehicleNode {
	return s.vehicles.list.First()
}

// 获取最前方车辆（s最大）
func (s *Segment) LastVehicle() *entity.VehicleNode {
	return s.vehicles.list.Last()
}
