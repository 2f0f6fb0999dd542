package config

// Node 路网节点配置
// 说明：节点仅提供路段端点坐标与邻接关系，拓扑本身在模拟过程中不可变
type Node struct {
	ID int32   `yaml:"id"` // 节点ID
	X  float64 `yaml:"x"`  // X坐标（米）
	Y  float64 `yaml:"y"`  // Y坐标（米）
}

// Segment 路段配置
// 功能：定义一条有向路段的几何与路况属性
type Segment struct {
	ID       int32   `yaml:"id"`                 // 路段ID
	From     int32   `yaml:"from"`               // 起点节点ID
	To       int32   `yaml:"to"`                 // 终点节点ID
	Length   float64 `yaml:"length,omitempty"`   // 路段长度（米），为0则由端点坐标计算
	Width    float64 `yaml:"width"`              // 路面可用宽度（米），不划分车道
	MaxSpeed float64 `yaml:"max_speed"`          // 限速（米/秒）
	Quality  float64 `yaml:"quality"`            // 路面质量评分，0~1，越低坑洼越多
	Capacity int32   `yaml:"capacity,omitempty"` // 容量估计（辆），仅用于统计
}

// Network 路网配置
type Network struct {
	Nodes    []Node    `yaml:"nodes"`    // 节点列表
	Segments []Segment `yaml:"segments"` // 路段列表
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
	// 路面质量低于该阈值时按比例压低速度上限
	QualityThreshold float64 `yaml:"quality_threshold,omitempty"`
	// 无路可走的车辆在blocked子状态下的存活时间（秒），超时移除
	BlockedTimeout float64 `yaml:"blocked_timeout,omitempty"`
}

// Spawn 车辆生成配置
type Spawn struct {
	Time      float64 `yaml:"time"`                // 生成时刻（秒）
	Type      string  `yaml:"type"`                // 车辆类型
	Emergency bool    `yaml:"emergency,omitempty"` // 是否为特权急救车辆
	Route     []int32 `yaml:"route"`               // 路径（路段ID序列）
}

// Emergency 突发事件注入配置
type Emergency struct {
	Time     float64 `yaml:"time"`               // 触发时刻（秒）
	Kind     string  `yaml:"kind"`               // 事件类型
	Segments []int32 `yaml:"segments"`           // 受影响路段
	Severity float64 `yaml:"severity"`           // 严重程度，0~1
	Duration float64 `yaml:"duration,omitempty"` // 持续时间（秒），0表示无限期直至手动清除
}

// Weather 初始天气配置
type Weather struct {
	State     string  `yaml:"state"`     // 天气状态
	Intensity float64 `yaml:"intensity"` // 强度，0~1
}

// Scenario 场景配置
// 说明：场景文件驱动的外部输入，等价于运行中通过命令面下发
type Scenario struct {
	Weather     *Weather    `yaml:"weather,omitempty"`     // 初始天气
	Spawns      []Spawn     `yaml:"spawns,omitempty"`      // 预定车辆生成
	Emergencies []Emergency `yaml:"emergencies,omitempty"` // 预定突发事件
}

// Config YAML配置文件的根结构
type Config struct {
	Network  Network  `yaml:"network"`  // 路网
	Control  Control  `yaml:"control"`  // 模拟过程控制
	Scenario Scenario `yaml:"scenario"` // 场景输入
}
