package task

import (
	"sort"
	"sync/atomic"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/clock"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/emergency"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/routing"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/segment"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：引擎为单线程步进模型，命令面方法只允许在两步之间调用；
// 外部不会在Step执行期间并发访问
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool
	// 暂停指令
	paused atomic.Bool

	// 时钟
	clock *clock.Clock

	// Segment管理器
	segmentManager entity.ISegmentManager
	// Vehicle管理器
	vehicleManager entity.IVehicleManager
	// 应急事件管理器
	emergencyManager entity.IEmergencyManager
	// 全局天气
	weather *weather.Weather
	// 导航服务
	router entity.IRouter

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 场景输入，按时间排序后依次注入
	pendingSpawns      []config.Spawn
	pendingEmergencies []config.Emergency
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化仿真系统的所有组件和配置
// 参数：job-任务名称，c-配置对象
func NewContext(job string, c config.Config) *Context {
	ctx := &Context{
		job: job,
	}
	ctx.runtimeConfig = config.NewRuntimeConfig(c)
	ctx.clock = clock.New(ctx.runtimeConfig.C.Step)

	// 新建各类模拟对象
	ctx.segmentManager = segment.NewManager(ctx)
	ctx.vehicleManager = vehicle.NewManager(ctx)
	ctx.emergencyManager = emergency.NewManager(ctx)
	ctx.weather = weather.New()
	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) SegmentManager() entity.ISegmentManager {
	return ctx.segmentManager
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) EmergencyManager() entity.IEmergencyManager {
	return ctx.emergencyManager
}

func (ctx *Context) Weather() *weather.Weather {
	return ctx.weather
}

func (ctx *Context) Router() entity.IRouter {
	return ctx.router
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Init 初始化
// 功能：构建路网、导航与场景输入队列，应用初始天气
func (ctx *Context) Init() error {
	ctx.clock.Init()

	c := &ctx.runtimeConfig.All
	log.Infof("Node: %v", len(c.Network.Nodes))
	log.Infof("Segment: %v", len(c.Network.Segments))
	log.Infof("Spawn: %v", len(c.Scenario.Spawns))
	log.Infof("Emergency: %v", len(c.Scenario.Emergencies))

	if err := ctx.segmentManager.Init(&c.Network); err != nil {
		return err
	}
	ctx.router = routing.New(ctx.segmentManager)

	if w := c.Scenario.Weather; w != nil {
		state, err := weather.ParseState(w.State)
		if err != nil {
			return err
		}
		if err := ctx.weather.Set(state, w.Intensity); err != nil {
			return err
		}
	}

	ctx.pendingSpawns = append(ctx.pendingSpawns, c.Scenario.Spawns...)
	sort.SliceStable(ctx.pendingSpawns, func(i, j int) bool {
		return ctx.pendingSpawns[i].Time < ctx.pendingSpawns[j].Time
	})
	ctx.pendingEmergencies = append(ctx.pendingEmergencies, c.Scenario.Emergencies...)
	sort.SliceStable(ctx.pendingEmergencies, func(i, j int) bool {
		return ctx.pendingEmergencies[i].Time < ctx.pendingEmergencies[j].Time
	})
	return nil
}

// Close 关闭仿真任务
func (ctx *Context) Close() {
	ctx.closed.Store(true)
}

// Pause 暂停推进，正在执行的步不受影响
func (ctx *Context) Pause() {
	ctx.paused.Store(true)
}

// Resume 恢复推进
func (ctx *Context) Resume() {
	ctx.paused.Store(false)
}

// Paused 是否处于暂停状态
func (ctx *Context) Paused() bool {
	return ctx.paused.Load()
}
