package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

const (
	lateralMargin     = 0.2 // 横向净距判定余量（米）
	minViewDistance   = 50  // 最小感知距离（米）
	maxViewDistance   = 150 // 最大感知距离（米）
	maxVehicleLength  = 15  // 最长车身（米），扫描截断的补偿量
	stopBuffer        = 2   // 在封闭路段入口前的停车余量（米）
	forcedAlignOffset = 0.5 // 出段前允许的横向偏移（米）
)

// vehicleEnv 车辆感知环境
// 说明：对快照占用索引扫描的结果，决策阶段只读
type vehicleEnv struct {
	leader    entity.IVehicle // 同横向通道内最近的前车
	leaderGap float64         // 与前车的净间距（保险杠到保险杠，米）

	stopDistance float64 // 到强制停车点的距离（米），<0表示没有停车点
	viewDistance float64 // 本步感知距离（米）
}

// controller 车辆控制器
// 功能：每步解析行为参数、扫描环境并产生纵向加速度与换位请求
type controller struct {
	v      *Vehicle
	params Params // 本步生效的行为参数
}

func newController(v *Vehicle) *controller {
	return &controller{v: v}
}

// update 控制器主入口
// 功能：计算车辆本步的动作
// 算法说明：
// 1. 按当前天气与所在路段状况解析行为参数
// 2. 扫描前方环境得到最近前车与强制停车点
// 3. 跟驰模型产生纵向加速度，停车点制动取最小合并
// 4. 按触发优先级产生换位请求（强制对齐 > 超车 > 机会性挪移）
func (c *controller) update(dt float64) Action {
	v := c.v
	cond := v.ctx.Weather().Snapshot()
	seg := v.snapshot.Segment
	c.params = Resolve(
		v.typ, v.emergency, v.seed, cond,
		seg.Quality(), seg.MaxV(), v.ctx.RuntimeConfig().C.QualityThreshold,
	)
	env := c.scanEnv(cond)
	action := c.follow(env)
	if env.stopDistance >= 0 {
		action.SetBrakeAcc(env.stopDistance, v.snapshot.V)
	}
	c.planReposition(env, dt, &action)
	return action
}

// scanEnv 扫描车辆前方环境
// 功能：在感知距离内沿路径寻找同横向通道内净间距最小的前车与强制停车点
// 算法说明：
// 1. 感知距离随速度增长，受能见度折减
// 2. 先在本路段占用链表中自后向前扫描，再跨入路径中的后继路段；
//    链表按车头位置排序，净间距以车尾计，车长不一时车头顺序不等于
//    车尾顺序，因此不能在首个横向重叠车辆处截断，须在感知距离
//    （加最长车身补偿）内取净间距最小者
// 3. 横向通道按两车投影重叠加余量判定
// 4. 下一路段封闭时记录强制停车点
func (c *controller) scanEnv(cond weather.Condition) *vehicleEnv {
	v := c.v
	seg := v.snapshot.Segment
	s := v.snapshot.S
	env := &vehicleEnv{stopDistance: -1}
	env.viewDistance = lo.Clamp(12*v.snapshot.V, minViewDistance, maxViewDistance) *
		math.Max(cond.Visibility(), 0.3)

	// 本路段内扫描
	for node := v.node.Next(); node != nil; node = node.Next() {
		other := node.Value
		if other.S()-s > env.viewDistance+maxVehicleLength {
			break
		}
		if !c.lateralOverlap(v.snapshot.LateralOffset, other) {
			continue
		}
		gap := other.S() - other.Length() - s
		if gap > env.viewDistance {
			continue
		}
		if env.leader == nil || gap < env.leaderGap {
			env.leader = other
			env.leaderGap = gap
		}
	}

	remain := seg.Length() - s
	if v.runtime.RouteIndex+1 < len(v.route) {
		next := v.route[v.runtime.RouteIndex+1]
		if next.IsClosed() {
			// 下一路段封闭，在本路段末端前停车
			env.stopDistance = remain - stopBuffer
		} else if remain < env.viewDistance {
			// 跨入下一路段继续寻找前车；刚跨段的长车车尾可能仍在本路段内，
			// 其净间距可能小于本路段内前车，同样取最小者
			for node := next.FirstVehicle(); node != nil; node = node.Next() {
				other := node.Value
				if remain+other.S() > env.viewDistance+maxVehicleLength {
					break
				}
				if !c.lateralOverlap(v.snapshot.LateralOffset, other) {
					continue
				}
				gap := remain + other.S() - other.Length()
				if gap > env.viewDistance {
					continue
				}
				if env.leader == nil || gap < env.leaderGap {
					env.leader = other
					env.leaderGap = gap
				}
			}
		}
	}
	return env
}

// lateralOverlap 判断本车与other的横向投影是否重叠（含余量）
func (c *controller) lateralOverlap(offset float64, other entity.IVehicle) bool {
	return math.Abs(other.LateralOffset()-offset) <
		(other.Width()+c.v.width)/2+lateralMargin
}
