package vehicle

// Action 车辆动作结构体
// 功能：描述车辆单步的控制动作，包括加速度与待仲裁的换位请求
type Action struct {
	A           float64             // 加速度（米/秒²）
	Reposition  *repositionRequest  // 换位请求，仲裁获准后才会生效
	SafetyEvent bool                // 本步是否触发了无条件紧急制动
}

// Update 更新车辆动作
// 功能：采用取最小的方式合并加速度，处理多个动作的冲突
// 算法说明：
// 1. 对于加速度，取所有动作中的最小值（最保守的制动）
// 2. 对于换位请求，如果存在冲突则记录错误，保留第一个有效请求
func (a *Action) Update(others ...Action) {
	for _, o := range others {
		if o.A < a.A {
			a.A = o.A
		}
		if o.SafetyEvent {
			a.SafetyEvent = true
		}
		if o.Reposition != nil {
			if a.Reposition != nil {
				log.Error("reposition request conflict")
			}
			a.Reposition = o.Reposition
		}
	}
}

// SetBrakeAcc 设置制动加速度
// 功能：根据制动距离和当前速度计算所需的制动加速度
// 参数：brakeDistance-制动距离（米），v-当前速度（米/秒）
// 算法说明：使用运动学公式计算制动加速度 a = -v²/(2*d)
func (a *Action) SetBrakeAcc(brakeDistance, v float64) {
	if v == 0 {
		// 静止车辆无需制动
	} else if brakeDistance <= 0 {
		// 制动目标已越过
	} else if brake := -v * v / brakeDistance / 2; brake < a.A {
		a.A = brake
	}
}
