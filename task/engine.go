package task

import (
	"flag"
	"time"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 算法说明：
// 1. 更新时钟
// 2. 心跳日志：定期输出系统状态信息
// 3. 车辆链表节点更新 -> 路段占用索引重排 -> 车辆快照更新，
//    保证本步所有决策读到的都是上一步提交的状态
func (ctx *Context) prepare() {
	ctx.clock.Tick()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		m := ctx.vehicleManager.Metrics()
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) driving=%d blocked=%d finished=%d",
			ctx.clock.InternalStep,
			hour, minute, second,
			m.DrivingCount, m.BlockedCount, m.FinishedCount,
		)
	}

	ctx.vehicleManager.PrepareNode()
	ctx.segmentManager.Prepare()
	ctx.vehicleManager.Prepare()
}

// update 更新阶段，每步执行一次
// 说明：先推进车辆（决策-仲裁-提交），再解除到期的应急事件
func (ctx *Context) update() {
	ctx.vehicleManager.Update(ctx.clock.DT)
	ctx.emergencyManager.Update()
}

// applyScenario 注入到期的场景输入
// 说明：等价于在两步之间由命令面下发，注入失败只告警不中断
func (ctx *Context) applyScenario() {
	now := ctx.clock.T
	for len(ctx.pendingSpawns) > 0 && ctx.pendingSpawns[0].Time <= now {
		spawn := ctx.pendingSpawns[0]
		ctx.pendingSpawns = ctx.pendingSpawns[1:]
		if _, err := ctx.SpawnVehicle(spawn.Type, spawn.Emergency, spawn.Route); err != nil {
			log.Warnf("scenario spawn at %.1fs rejected: %v", spawn.Time, err)
		}
	}
	for len(ctx.pendingEmergencies) > 0 && ctx.pendingEmergencies[0].Time <= now {
		em := ctx.pendingEmergencies[0]
		ctx.pendingEmergencies = ctx.pendingEmergencies[1:]
		if _, err := ctx.TriggerEmergency(em.Kind, em.Severity, em.Segments, em.Duration); err != nil {
			log.Warnf("scenario emergency at %.1fs rejected: %v", em.Time, err)
		}
	}
}

// Step 推进一步
// 说明：两步之间注入场景输入，之后准备、更新
func (ctx *Context) Step() {
	ctx.applyScenario()
	ctx.prepare()
	ctx.update()
}

// Run 运行
// 说明：推进到结束步或收到关闭指令为止，暂停期间空转等待
func (ctx *Context) Run() error {
	if err := ctx.Init(); err != nil {
		return err
	}
	for {
		if ctx.closed.Load() {
			break
		}
		if ctx.paused.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		ctx.Step()
		if ctx.clock.InternalStep+1 >= ctx.clock.END_STEP {
			break
		}
	}
	log.Infof("engine complete")
	return nil
}
