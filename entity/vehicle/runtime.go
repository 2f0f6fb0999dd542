package vehicle

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
)

// repositionRuntime 换位运行时数据
// 功能：记录获准执行的连续横向挪移过程
type repositionRuntime struct {
	Active       bool              // 是否正在换位
	TargetOffset float64           // 目标横向偏移（米）
	Reason       repositionReason  // 换位触发原因
}

// runtime 车辆运行时数据结构
// 说明：该数据结构需要可以被直接复制，不应产生浅拷贝带来的副作用；
// 决策阶段只读快照，提交阶段只写运行时
type runtime struct {
	Status entity.VehicleStatus // 上一时刻状态

	Segment       entity.ISegment // 所在路段
	RouteIndex    int             // 所在路段在路径中的下标
	S             float64         // 沿路段里程（米）
	LateralOffset float64         // 相对路段中心线的横向偏移（米），左负右正
	V             float64         // 速度（米/秒）

	XYZ     geometry.Point // 位置坐标
	Heading float64        // 朝向角（弧度）

	Action     Action            // 本步执行的动作
	Reposition repositionRuntime // 换位过程
}
