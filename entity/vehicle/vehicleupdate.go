package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
)

const (
	minLateralV  = 0.5 // 最低横向挪移速度（米/秒）
	maxLateralV  = 2.0 // 最高横向挪移速度（米/秒）
	stopEpsilonV = 0.1 // 视为已停稳的速度（米/秒）
)

// commit 提交阶段：应用决策动作，推进运动学状态
// 算法说明：
// 1. 纵向按恒加速度积分，速度夹在[0, 速度上限]内
// 2. 获准的换位以有限横向速度向目标偏移连续滑移
// 3. 越过路段末端时沿路径进入下一路段；下一路段封闭则停在末端
//    并标记重路由；路径走完则正常到达
// 4. 状态出现NaN/Inf视为损坏，移除该车而不影响其他车辆
func (v *Vehicle) commit(dt float64) {
	if v.runtime.Status != entity.VehicleStatusDriving {
		return
	}
	action := v.pendingAction
	v.runtime.Action = action
	if action.SafetyEvent {
		v.m.recordSafetyEvent()
	}

	newV, ds := computeVAndDistance(v.snapshot.V, action.A, dt)
	newV = math.Min(newV, v.controller.params.SpeedCap)

	// 横向滑移
	lat := v.snapshot.LateralOffset
	if v.runtime.Reposition.Active {
		target := v.runtime.Reposition.TargetOffset
		dLat := lo.Clamp(0.4*newV, minLateralV, maxLateralV) * dt
		if math.Abs(target-lat) <= dLat {
			lat = target
			v.runtime.Reposition = repositionRuntime{}
		} else if target > lat {
			lat += dLat
		} else {
			lat -= dLat
		}
	}

	// 纵向推进与跨段
	seg := v.snapshot.Segment
	idx := v.snapshot.RouteIndex
	s := v.snapshot.S + ds
	for s > seg.Length() {
		if idx+1 >= len(v.route) {
			// 到达终点
			v.finish(entity.RemoveReasonArrived)
			v.m.recordTripEnd()
			return
		}
		next := v.route[idx+1]
		if next.IsClosed() {
			// 停在本路段末端等待重路由
			s = seg.Length()
			newV = 0
			v.needReroute = true
			break
		}
		s -= seg.Length()
		idx++
		seg = next
		half := math.Max((seg.Width()-v.width)/2, 0)
		lat = lo.Clamp(lat, -half, half)
	}

	if math.IsNaN(s) || math.IsInf(s, 0) || math.IsNaN(newV) || math.IsNaN(lat) {
		log.Errorf("%v: corrupted runtime state (s=%v v=%v lat=%v), removed", v, s, newV, lat)
		v.finish(entity.RemoveReasonStateCorruption)
		v.m.recordRemoved(entity.RemoveReasonStateCorruption)
		return
	}

	v.runtime.Segment = seg
	v.runtime.RouteIndex = idx
	v.runtime.S = s
	v.runtime.V = newV
	v.runtime.LateralOffset = lat
	v.runtime.XYZ = seg.GetOffsetPositionByS(s, lat)
	if ds > 1e-3 {
		v.runtime.Heading = seg.Heading() + math.Atan2(lat-v.snapshot.LateralOffset, ds)
	} else {
		v.runtime.Heading = seg.Heading()
	}
}

// tryReroute 尝试以当前路段末端为起点重新规划到终点的路径
// 说明：规划成功后路径替换为当前路段加新路径，路径下标重置
func (v *Vehicle) tryReroute() bool {
	cur := v.runtime.Segment
	ids, err := v.ctx.Router().FindRoute(cur.ToNode(), v.destination, nil)
	if err != nil {
		return false
	}
	route := make([]entity.ISegment, 0, len(ids)+1)
	route = append(route, cur)
	for _, id := range ids {
		route = append(route, v.ctx.SegmentManager().Get(id))
	}
	v.route = route
	v.runtime.RouteIndex = 0
	v.needReroute = false
	log.Debugf("%v: rerouted via %v", v, ids)
	return true
}

// stoppedAtClosure 是否已停稳在封闭的下一路段入口前
func (v *Vehicle) stoppedAtClosure() bool {
	if v.runtime.RouteIndex+1 >= len(v.route) {
		return false
	}
	if !v.route[v.runtime.RouteIndex+1].IsClosed() {
		return false
	}
	remain := v.runtime.Segment.Length() - v.runtime.S
	return v.runtime.V < stopEpsilonV && remain < forcedAlignDistance
}
