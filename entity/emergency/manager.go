package emergency

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
)

// event 活跃应急事件
// 说明：记录事件对路段施加的作用，解除时按事件ID精确撤销
type event struct {
	id       int32
	kind     entity.EmergencyKind
	severity float64
	segments []entity.ISegment
	startT   float64 // 触发时刻
	duration float64 // 0表示无限期
	closes   bool    // 封闭路段（积水、道路封闭）还是劣化路面
}

// degradeFactor 事件对路面质量的劣化系数，随严重程度加深
func (e *event) degradeFactor() float64 {
	return lo.Clamp(1-0.6*e.severity, 0.05, 1)
}

// EmergencyManager 应急事件管理器
// 功能：触发与解除应急事件，维护事件对路段的作用，到期自动解除
// 说明：所有方法仅在两步之间或更新阶段的串行段调用
type EmergencyManager struct {
	ctx entity.ITaskContext

	events      map[int32]*event
	nextEventID int32
}

// NewManager 创建应急事件管理器实例
func NewManager(ctx entity.ITaskContext) *EmergencyManager {
	return &EmergencyManager{
		ctx:         ctx,
		events:      make(map[int32]*event),
		nextEventID: 1,
	}
}

// Init 初始化
func (m *EmergencyManager) Init(ctx entity.ITaskContext) {
	m.ctx = ctx
}

// Trigger 触发应急事件
// 功能：校验参数后对受影响路段施加封闭或劣化，并通知途经车辆重路由
// 返回：分配的事件ID
// 算法说明：
// 1. 积水与道路封闭直接封闭路段；事故、施工、抛锚按严重程度劣化路面质量
// 2. 校验同步完成，任何一项不通过则整体拒绝且不产生任何状态变化
func (m *EmergencyManager) Trigger(
	kind entity.EmergencyKind, severity float64, segments []int32, duration float64,
) (int32, error) {
	if severity < 0 || severity > 1 {
		return 0, fmt.Errorf("emergency: severity %v out of range [0,1]", severity)
	}
	if duration < 0 {
		return 0, fmt.Errorf("emergency: negative duration %v", duration)
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("emergency: no affected segments")
	}
	affected := make([]entity.ISegment, 0, len(segments))
	for _, id := range segments {
		seg, err := m.ctx.SegmentManager().GetOrError(id)
		if err != nil {
			return 0, fmt.Errorf("emergency: %w", err)
		}
		affected = append(affected, seg)
	}

	closes := kind == entity.EmergencyFlooding || kind == entity.EmergencyRoadClosure
	e := &event{
		id:       m.nextEventID,
		kind:     kind,
		severity: severity,
		segments: affected,
		startT:   m.ctx.Clock().T,
		duration: duration,
		closes:   closes,
	}
	m.nextEventID++
	m.events[e.id] = e

	if closes {
		closed := make(map[int32]struct{}, len(affected))
		for _, seg := range affected {
			seg.Close(e.id)
			closed[seg.ID()] = struct{}{}
		}
		m.ctx.VehicleManager().FlagReroute(closed)
	} else {
		factor := e.degradeFactor()
		for _, seg := range affected {
			seg.Degrade(e.id, factor)
		}
	}
	log.Infof("emergency %d (%v, severity=%.2f) triggered on segments %v",
		e.id, kind, severity, segments)
	return e.id, nil
}

// Clear 解除应急事件
// 说明：按事件ID精确撤销其对路段的全部作用，其他事件的作用保持不变
func (m *EmergencyManager) Clear(id int32) error {
	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("emergency: no event %d", id)
	}
	m.clear(e)
	return nil
}

func (m *EmergencyManager) clear(e *event) {
	for _, seg := range e.segments {
		if e.closes {
			seg.Reopen(e.id)
		} else {
			seg.Restore(e.id)
		}
	}
	delete(m.events, e.id)
	log.Infof("emergency %d (%v) cleared", e.id, e.kind)
}

// Update 更新阶段：解除到期事件
func (m *EmergencyManager) Update() {
	now := m.ctx.Clock().T
	var due []*event
	for _, e := range m.events {
		if e.duration > 0 && now >= e.startT+e.duration {
			due = append(due, e)
		}
	}
	// 按事件ID排序，保证解除顺序确定
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })
	for _, e := range due {
		m.clear(e)
	}
}

// Active 获取所有活跃事件，按事件ID升序
func (m *EmergencyManager) Active() []entity.EmergencyInfo {
	infos := make([]entity.EmergencyInfo, 0, len(m.events))
	for _, e := range m.events {
		infos = append(infos, entity.EmergencyInfo{
			ID:       e.id,
			Kind:     e.kind,
			Severity: e.severity,
			Segments: lo.Map(e.segments, func(s entity.ISegment, _ int) int32 { return s.ID() }),
			StartT:   e.startT,
			Duration: e.duration,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
