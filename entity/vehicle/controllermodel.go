package vehicle

import "math"

// follow 跟驰模型
// 功能：根据与前车的间距产生纵向加速度
// 算法说明：
// 1. 净间距跌破安全下限：无条件紧急制动，不做任何意愿判断
// 2. 净间距不小于期望间距：自由加速渐近速度上限
// 3. 介于两者之间：按间距缺口比例施加常规制动，
//    车道纪律性低的车辆容忍更小的间距（制动更弱）
// 4. 期望间距 = 安全下限 + v·车头时距·(0.5+0.5·纪律性)
func (c *controller) follow(env *vehicleEnv) Action {
	v := c.v.snapshot.V
	if env.leader == nil {
		return c.free()
	}
	gap := env.leaderGap
	if gap <= c.params.MinGap {
		return Action{A: c.params.MaxBrakingA, SafetyEvent: true}
	}
	desired := c.desiredGap(v)
	if gap >= desired {
		return c.free()
	}
	deficit := (desired - gap) / desired
	return Action{A: c.params.UsualBrakingA * deficit * (0.5 + 0.5*c.params.LaneDiscipline)}
}

// free 自由流加速
// 说明：加速度随速度接近上限而衰减；超过上限（如天气突变压低上限）时为负
func (c *controller) free() Action {
	v := c.v.snapshot.V
	ratio := v / c.params.SpeedCap
	return Action{A: c.params.MaxA * (1 - math.Pow(ratio, 4))}
}

// desiredGap 期望跟车间距（米）
func (c *controller) desiredGap(v float64) float64 {
	return c.params.MinGap + v*c.params.Headway*(0.5+0.5*c.params.LaneDiscipline)
}

// 计算本时刻的速度与移动距离
// v(t)=v(t-1)+acc*dt, ds=v(t-1)*dt+acc*dt*dt/2
func computeVAndDistance(v, a, dt float64) (float64, float64) {
	dv := a * dt
	if v+dv < 0 {
		// 刹车到停止
		if a >= 0 {
			return 0, 0
		}
		return 0, v * v / 2 / -a
	}
	return v + dv, (v + dv/2) * dt
}
