package config

const (
	defaultInterval         = 0.5 // 默认时间步长（秒）
	defaultQualityThreshold = 0.6 // 默认路面质量阈值
	defaultBlockedTimeout   = 120 // 默认blocked超时（秒）
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，补全默认值后的配置对象
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，补全缺省项
// 算法说明：
// 1. 步长缺省为0.5秒
// 2. 路面质量阈值缺省为0.6
// 3. blocked超时缺省为120秒
func NewRuntimeConfig(config Config) *RuntimeConfig {
	c := config.Control
	if c.Step.Interval <= 0 {
		c.Step.Interval = defaultInterval
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = defaultQualityThreshold
	}
	if c.BlockedTimeout <= 0 {
		c.BlockedTimeout = defaultBlockedTimeout
	}
	return &RuntimeConfig{
		All: config,
		C:   c,
	}
}
