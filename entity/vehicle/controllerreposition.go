package vehicle

import (
	"math"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
)

// repositionReason 换位触发原因，数值即触发优先级
type repositionReason int32

const (
	repositionForced   repositionReason = iota // 出段前强制对齐
	repositionOvertake                         // 前车过慢触发超车
	repositionWeave                            // 机会性见缝插针
)

func (r repositionReason) String() string {
	switch r {
	case repositionForced:
		return "forced"
	case repositionOvertake:
		return "overtake"
	case repositionWeave:
		return "weave"
	}
	return "unknown"
}

const (
	forcedAlignDistance = 30  // 出段前开始强制对齐的剩余距离（米）
	overtakeVRatio      = 0.7 // 前车速度低于本车期望的该比例时考虑超车
	overtakeClearance   = 0.5 // 超车横向净距（米）
	overtakeGapMargin   = 2   // 目标通道间距须超出当前间距的容差（米）
	weaveMaxShift       = 1.5 // 机会性挪移的最大横向幅度（米）
	claimTailMargin     = 2   // 空间声明向后的余量（米）
	claimMinAhead       = 5   // 空间声明向前的最小长度（米）
)

// repositionRequest 换位请求
// 功能：描述一次连续横向挪移的空间声明，提交冲突仲裁
type repositionRequest struct {
	v            *Vehicle
	seg          entity.ISegment
	reason       repositionReason
	targetOffset float64

	// 声明的空间区间
	sMin, sMax     float64
	latMin, latMax float64
}

// planReposition 换位规划
// 功能：按触发优先级产生换位请求并附带空间声明
// 算法说明：
// 1. 正在换位时不产生新请求
// 2. 强制对齐：剩余距离不足且偏移过大时向中心线收拢，必须执行
// 3. 超车：前车显著慢于期望速度且间距紧张时，按超车意愿概率发起，
//    在前车左右选择可用且更靠近路中的一侧；目标通道必须无并排车辆、
//    前向间距不小于期望间距且比当前间距至少宽出容差
// 4. 机会性挪移：按weave概率在附近随机选择新的横向位置，
//    目标通道同样按期望间距做间隙接受判断
func (c *controller) planReposition(env *vehicleEnv, dt float64, action *Action) {
	v := c.v
	if v.snapshot.Reposition.Active {
		return
	}
	seg := v.snapshot.Segment
	offset := v.snapshot.LateralOffset
	half := math.Max((seg.Width()-v.width)/2-lateralMargin, 0)
	remain := seg.Length() - v.snapshot.S

	// 强制对齐
	if remain < forcedAlignDistance && math.Abs(offset) > forcedAlignOffset {
		action.Reposition = c.newRequest(repositionForced, 0)
		return
	}
	desired := c.desiredGap(v.snapshot.V)
	// 超车
	if env.leader != nil &&
		env.leader.V() < overtakeVRatio*c.params.SpeedCap &&
		env.leaderGap < 2*desired &&
		v.generator.PTrue(c.params.OvertakeAggr) {
		clearance := (env.leader.Width()+v.width)/2 + overtakeClearance
		left := env.leader.LateralOffset() - clearance
		right := env.leader.LateralOffset() + clearance
		if target, ok := pickSide(left, right, half); ok {
			if gap, free := c.targetChannelGap(target); free &&
				gap >= desired && gap > env.leaderGap+overtakeGapMargin {
				action.Reposition = c.newRequest(repositionOvertake, target)
				return
			}
		}
	}
	// 机会性挪移
	if v.generator.PTrue(c.params.WeaveProb * dt) {
		shift := (v.generator.Float64()*2 - 1) * weaveMaxShift
		target := offset + shift
		if target >= -half && target <= half && math.Abs(shift) > lateralMargin {
			if gap, free := c.targetChannelGap(target); free && gap >= desired {
				action.Reposition = c.newRequest(repositionWeave, target)
			}
		}
	}
}

// targetChannelGap 目标横向通道的间隙接受度量
// 功能：测量目标偏移所在通道内的前向净间距
// 返回：前向净间距（无前车时为+Inf）；通道内存在并排重叠车辆时第二个
// 返回值为false，表示无法进入
func (c *controller) targetChannelGap(target float64) (float64, bool) {
	v := c.v
	s := v.snapshot.S
	gap := math.Inf(1)
	for node := v.snapshot.Segment.FirstVehicle(); node != nil; node = node.Next() {
		other := node.Value
		if other.ID() == v.id || !c.lateralOverlap(target, other) {
			continue
		}
		rear := other.S() - other.Length()
		switch {
		case rear >= s:
			if g := rear - s; g < gap {
				gap = g
			}
		case other.S() > s-v.length-claimTailMargin:
			// 并排占用
			return 0, false
		}
	}
	return gap, true
}

// pickSide 在左右两个候选偏移中选择可用且更靠近路中的一个
func pickSide(left, right, half float64) (float64, bool) {
	leftOK := left >= -half && left <= half
	rightOK := right >= -half && right <= half
	switch {
	case leftOK && rightOK:
		if math.Abs(left) <= math.Abs(right) {
			return left, true
		}
		return right, true
	case leftOK:
		return left, true
	case rightOK:
		return right, true
	}
	return 0, false
}

// newRequest 构造换位请求
// 说明：空间声明覆盖车身到目标横向位置扫过的矩形，
// 纵向自车尾余量延伸至期望车头时距对应的前方距离
func (c *controller) newRequest(reason repositionReason, targetOffset float64) *repositionRequest {
	v := c.v
	s := v.snapshot.S
	offset := v.snapshot.LateralOffset
	ahead := math.Max(v.snapshot.V*c.params.Headway, claimMinAhead)
	latLow := math.Min(offset, targetOffset) - v.width/2
	latHigh := math.Max(offset, targetOffset) + v.width/2
	return &repositionRequest{
		v:            v,
		seg:          v.snapshot.Segment,
		reason:       reason,
		targetOffset: targetOffset,
		sMin:         s - v.length - claimTailMargin,
		sMax:         s + ahead,
		latMin:       latLow,
		latMax:       latHigh,
	}
}

// overlaps 判断两个空间声明是否重叠
func (r *repositionRequest) overlaps(o *repositionRequest) bool {
	return r.sMin <= o.sMax && o.sMin <= r.sMax &&
		r.latMin <= o.latMax && o.latMin <= r.latMax
}
