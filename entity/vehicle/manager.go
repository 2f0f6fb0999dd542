package vehicle

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/container"
)

// VehicleManager Vehicle管理器
// 功能：管理所有车辆实体，实现先决策后提交的每步更新，
// 更新阶段分为串行重路由、并行决策、串行仲裁、并行提交四个子阶段
type VehicleManager struct {
	ctx entity.ITaskContext

	data map[int32]*Vehicle

	vehicles *container.IncrementalArray[*Vehicle]

	inserted      []*Vehicle // 新加入的车
	insertedMutex sync.Mutex
	nextVehicleID int32

	metrics    entity.VehicleMetrics // 运行时统计
	snapshot   entity.VehicleMetrics // 统计快照
	metricsMtx sync.Mutex
}

// NewManager 创建Vehicle管理器实例
func NewManager(ctx entity.ITaskContext) *VehicleManager {
	return &VehicleManager{
		ctx:           ctx,
		data:          make(map[int32]*Vehicle),
		vehicles:      container.NewIncrementalArray[*Vehicle](),
		inserted:      make([]*Vehicle, 0),
		nextVehicleID: 1,
		metrics: entity.VehicleMetrics{
			DefersByPriority: make(map[int32]int64),
			RemovalsByReason: make(map[string]int64),
		},
	}
}

// Init 初始化
func (m *VehicleManager) Init(ctx entity.ITaskContext) {
	m.ctx = ctx
}

// Add 添加新车（Prepare后生效）
// 功能：校验生成参数，分配车辆ID并加入插入缓冲
// 说明：校验同步完成，任何一项不通过则整体拒绝且不产生任何状态变化
func (m *VehicleManager) Add(opt entity.SpawnOptions) (int32, error) {
	if len(opt.Route) == 0 {
		return 0, fmt.Errorf("vehicle: empty route")
	}
	route := make([]entity.ISegment, 0, len(opt.Route))
	for _, id := range opt.Route {
		seg, err := m.ctx.SegmentManager().GetOrError(id)
		if err != nil {
			return 0, fmt.Errorf("vehicle: bad route: %w", err)
		}
		route = append(route, seg)
	}
	for i := 0; i+1 < len(route); i++ {
		if route[i].ToNode() != route[i+1].FromNode() {
			return 0, fmt.Errorf(
				"vehicle: route segments %d and %d are not connected",
				route[i].ID(), route[i+1].ID(),
			)
		}
	}
	if route[0].IsClosed() {
		return 0, fmt.Errorf("vehicle: spawn segment %d is closed", route[0].ID())
	}

	m.insertedMutex.Lock()
	defer m.insertedMutex.Unlock()
	id := m.nextVehicleID
	m.nextVehicleID++
	v := newVehicle(m.ctx, m, id, opt, route)
	m.inserted = append(m.inserted, v)
	return id, nil
}

// Get 根据ID获取Vehicle实例，如果不存在则panic
func (m *VehicleManager) Get(id int32) entity.IVehicle {
	if v, ok := m.data[id]; !ok {
		log.Panicf("no id %d in vehicle data", id)
		return nil
	} else {
		return v
	}
}

// GetOrError 根据ID获取Vehicle实例，如果不存在则返回错误
func (m *VehicleManager) GetOrError(id int32) (entity.IVehicle, error) {
	if v, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in vehicle data", id)
	} else {
		return v, nil
	}
}

// Vehicles 获取所有在途车辆
func (m *VehicleManager) Vehicles() map[int32]entity.IVehicle {
	return lo.MapEntries(m.data, func(id int32, v *Vehicle) (int32, entity.IVehicle) {
		return id, v
	})
}

// FlagReroute 通知所有路径途经closed中路段的车辆在下一步决策前重路由
func (m *VehicleManager) FlagReroute(closed map[int32]struct{}) {
	for _, v := range m.vehicles.Data() {
		if v.runtime.Status == entity.VehicleStatusDriving && v.routeContains(closed) {
			v.needReroute = true
		}
	}
	for _, v := range m.inserted {
		if v.routeContains(closed) {
			v.needReroute = true
		}
	}
}

// PrepareNode 准备阶段：占用链表节点更新
// 算法说明：
// 1. 新车加入主数据
// 2. 结束生命周期的车辆摘除链表节点并移出主数据
// 3. 其余车辆维护链表节点位置
func (m *VehicleManager) PrepareNode() {
	for _, newV := range m.inserted {
		if _, ok := m.data[newV.ID()]; ok {
			log.Panic("vehicle: same id between new vehicle and existed vehicle")
		}
		m.data[newV.ID()] = newV
		m.vehicles.Add(newV)
	}
	m.inserted = m.inserted[:0]

	for _, v := range m.vehicles.Data() {
		if v.runtime.Status == entity.VehicleStatusFinished {
			v.prepareNode()
			delete(m.data, v.id)
			m.vehicles.Remove(v)
		}
	}
	m.vehicles.Prepare()

	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.prepareNode() })
}

// Prepare 准备阶段：snapshot更新
func (m *VehicleManager) Prepare() {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.prepare() })

	m.metrics.DrivingCount = 0
	m.metrics.BlockedCount = 0
	for _, v := range m.vehicles.Data() {
		switch v.runtime.Status {
		case entity.VehicleStatusDriving:
			m.metrics.DrivingCount++
		case entity.VehicleStatusBlocked:
			m.metrics.BlockedCount++
		}
	}
	m.snapshot = m.metrics
	m.snapshot.DefersByPriority = make(map[int32]int64, len(m.metrics.DefersByPriority))
	for k, n := range m.metrics.DefersByPriority {
		m.snapshot.DefersByPriority[k] = n
	}
	m.snapshot.RemovalsByReason = make(map[string]int64, len(m.metrics.RemovalsByReason))
	for k, n := range m.metrics.RemovalsByReason {
		m.snapshot.RemovalsByReason[k] = n
	}
}

// Update 更新阶段：决策-仲裁-提交
// 算法说明：
// 1. 串行处理重路由与blocked车辆（路由查询必须有确定的先后顺序）
// 2. 并行决策：各车只读快照计算动作与换位请求
// 3. 串行仲裁：对空间声明重叠的换位请求每组放行一个
// 4. 并行提交：应用动作推进运行时状态
func (m *VehicleManager) Update(dt float64) {
	m.updateRoutes()
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.decide(dt) })
	m.arbitrate()
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.commit(dt) })
}

// updateRoutes 串行处理重路由请求与blocked车辆
// 算法说明：
// 1. blocked车辆每步重试路由，成功则恢复行驶，超时则以ROUTE_UNAVAILABLE移除
// 2. 被标记重路由的行驶车辆尝试改道；无路可走且已停稳在封闭路段入口前
//    则转入blocked子状态
func (m *VehicleManager) updateRoutes() {
	now := m.ctx.Clock().T
	timeout := m.ctx.RuntimeConfig().C.BlockedTimeout
	for _, v := range m.vehicles.Data() {
		switch v.runtime.Status {
		case entity.VehicleStatusBlocked:
			if v.tryReroute() {
				v.runtime.Status = entity.VehicleStatusDriving
				v.blockedSince = 0
				log.Infof("%v: unblocked by reroute", v)
			} else if now-v.blockedSince >= timeout {
				log.Warnf("%v: blocked for %.0fs, removed (%s)",
					v, now-v.blockedSince, entity.RemoveReasonRouteUnavailable)
				v.finish(entity.RemoveReasonRouteUnavailable)
				m.recordRemoved(entity.RemoveReasonRouteUnavailable)
			}
		case entity.VehicleStatusDriving:
			if !v.needReroute {
				continue
			}
			if !v.tryReroute() && v.stoppedAtClosure() {
				v.runtime.Status = entity.VehicleStatusBlocked
				v.blockedSince = now
				v.runtime.V = 0
				log.Infof("%v: no viable route, blocked", v)
			}
		}
	}
}

// arbitrate 串行仲裁换位请求
func (m *VehicleManager) arbitrate() {
	requests := make([]*repositionRequest, 0)
	for _, v := range m.vehicles.Data() {
		if v.pendingAction.Reposition != nil {
			requests = append(requests, v.pendingAction.Reposition)
		}
	}
	if len(requests) == 0 {
		return
	}
	granted, deferred := resolveRepositions(requests)
	for _, r := range granted {
		r.v.runtime.Reposition = repositionRuntime{
			Active:       true,
			TargetOffset: r.targetOffset,
			Reason:       r.reason,
		}
		r.v.consecutiveDefers = 0
		m.metrics.RepositionGrants++
	}
	for _, r := range deferred {
		r.v.consecutiveDefers++
		m.metrics.RepositionDefers++
		m.metrics.DefersByPriority[r.v.PriorityClass()]++
		if r.v.consecutiveDefers > m.metrics.MaxConsecutiveDefers {
			m.metrics.MaxConsecutiveDefers = r.v.consecutiveDefers
		}
		r.v.pendingAction.Reposition = nil
	}
}

// Metrics 获取统计量快照
func (m *VehicleManager) Metrics() entity.VehicleMetrics {
	return m.snapshot
}

// recordSafetyEvent 记录一次无条件紧急制动
func (m *VehicleManager) recordSafetyEvent() {
	m.metricsMtx.Lock()
	m.metrics.SafetyEvents++
	m.metricsMtx.Unlock()
}

// recordTripEnd 记录一次正常到达
func (m *VehicleManager) recordTripEnd() {
	m.metricsMtx.Lock()
	m.metrics.FinishedCount++
	m.metricsMtx.Unlock()
}

// recordRemoved 记录一次异常移除
func (m *VehicleManager) recordRemoved(reason string) {
	m.metricsMtx.Lock()
	m.metrics.RemovedCount++
	m.metrics.RemovalsByReason[reason]++
	m.metricsMtx.Unlock()
}
