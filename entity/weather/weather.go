package weather

import (
	"fmt"

	"github.com/samber/lo"
)

// State 天气状态
type State int32

const (
	StateClear     State = iota // 晴
	StateLightRain              // 小雨
	StateHeavyRain              // 大雨（季风暴雨）
	StateFog                    // 雾
	StateDustStorm              // 沙尘暴
)

var stateNames = map[State]string{
	StateClear:     "clear",
	StateLightRain: "light_rain",
	StateHeavyRain: "heavy_rain",
	StateFog:       "fog",
	StateDustStorm: "dust_storm",
}

// ParseState 解析天气状态名
func ParseState(s string) (State, error) {
	for state, name := range stateNames {
		if name == s {
			return state, nil
		}
	}
	return StateClear, fmt.Errorf("weather: unknown state %q", s)
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// 每种天气状态的基础系数表
// speed: 速度上限系数 gap: 跟车间距系数 visibility: 能见度 traction: 附着力
var stateFactors = map[State]struct {
	speed      float64
	gap        float64
	visibility float64
	traction   float64
}{
	StateClear:     {speed: 1.0, gap: 1.0, visibility: 1.0, traction: 1.0},
	StateLightRain: {speed: 0.85, gap: 1.3, visibility: 0.8, traction: 0.8},
	StateHeavyRain: {speed: 0.6, gap: 1.8, visibility: 0.4, traction: 0.55},
	StateFog:       {speed: 0.5, gap: 2.0, visibility: 0.2, traction: 0.9},
	StateDustStorm: {speed: 0.4, gap: 1.6, visibility: 0.1, traction: 0.75},
}

// Condition 天气条件值
// 说明：行为参数解析每步读取的值拷贝，所有推导量都是(State, Intensity)的纯函数
type Condition struct {
	State     State   // 天气状态
	Intensity float64 // 强度，0~1
}

// SpeedFactor 速度上限系数
// 说明：随强度单调下降，下限0.2
func (c Condition) SpeedFactor() float64 {
	f := stateFactors[c.State].speed * (1 - 0.2*c.Intensity)
	return lo.Clamp(f, 0.2, 1)
}

// GapFactor 跟车间距系数
// 说明：随强度单调上升，下限1（天气只会放大间距，不会缩小）
func (c Condition) GapFactor() float64 {
	f := stateFactors[c.State].gap * (1 + 0.5*c.Intensity)
	if f < 1 {
		return 1
	}
	return f
}

// Visibility 能见度，0~1
func (c Condition) Visibility() float64 {
	v := stateFactors[c.State].visibility * (1 - 0.5*c.Intensity)
	return lo.Clamp(v, 0.05, 1)
}

// Traction 路面附着力，0~1
func (c Condition) Traction() float64 {
	t := stateFactors[c.State].traction * (1 - 0.3*c.Intensity)
	return lo.Clamp(t, 0.2, 1)
}

// Weather 全局天气单例
// 功能：进程级共享的天气状态机，状态迁移完全由外部场景控制驱动
// 说明：没有自迁移，迁移除更新自身取值外无任何副作用；
// 消费方只读当前值，严禁各车复制保存历史
type Weather struct {
	current Condition
}

// New 创建天气单例，初始为晴、强度0
func New() *Weather {
	return &Weather{current: Condition{State: StateClear, Intensity: 0}}
}

// Set 设置天气状态与强度
// 说明：仅允许在两步之间由命令面调用；参数非法时拒绝且不发生任何变化
func (w *Weather) Set(state State, intensity float64) error {
	if _, ok := stateFactors[state]; !ok {
		return fmt.Errorf("weather: unknown state %v", state)
	}
	if intensity < 0 || intensity > 1 {
		return fmt.Errorf("weather: intensity %v out of range [0,1]", intensity)
	}
	w.current = Condition{State: state, Intensity: intensity}
	return nil
}

// Snapshot 读取当前天气条件值
func (w *Weather) Snapshot() Condition {
	return w.current
}
