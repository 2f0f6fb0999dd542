package segment

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/config"
)

// SegmentManager Segment管理器
// 功能：管理所有Segment实体，维护节点邻接关系，提供创建、查找等功能
type SegmentManager struct {
	ctx entity.ITaskContext

	data     map[int32]*Segment
	segments []*Segment

	nodes    map[int32]geometry.Point // 节点ID -> 坐标
	outgoing map[int32][]*Segment     // 节点ID -> 以该节点为起点的路段，按ID升序
}

// NewManager 创建Segment管理器实例
func NewManager(ctx entity.ITaskContext) *SegmentManager {
	return &SegmentManager{
		ctx:      ctx,
		data:     make(map[int32]*Segment),
		segments: make([]*Segment, 0),
		nodes:    make(map[int32]geometry.Point),
		outgoing: make(map[int32][]*Segment),
	}
}

// Init 初始化路网
// 功能：根据配置数据初始化所有Segment对象，建立ID映射与节点邻接关系
// 说明：路段端点必须引用已声明的节点，重复ID视为配置错误
func (m *SegmentManager) Init(network *config.Network) error {
	for _, node := range network.Nodes {
		if _, ok := m.nodes[node.ID]; ok {
			return fmt.Errorf("duplicated node id %d", node.ID)
		}
		m.nodes[node.ID] = geometry.Point{X: node.X, Y: node.Y}
	}
	for i := range network.Segments {
		base := &network.Segments[i]
		from, ok := m.nodes[base.From]
		if !ok {
			return fmt.Errorf("segment %d: unknown from node %d", base.ID, base.From)
		}
		to, ok := m.nodes[base.To]
		if !ok {
			return fmt.Errorf("segment %d: unknown to node %d", base.ID, base.To)
		}
		if _, ok := m.data[base.ID]; ok {
			return fmt.Errorf("duplicated segment id %d", base.ID)
		}
		s := newSegment(m.ctx, base, from, to)
		m.data[s.id] = s
		m.segments = append(m.segments, s)
		m.outgoing[s.fromNode] = append(m.outgoing[s.fromNode], s)
	}
	// 邻接表按路段ID排序，保证遍历顺序确定
	for _, segments := range m.outgoing {
		sort.Slice(segments, func(i, j int) bool { return segments[i].id < segments[j].id })
	}
	log.Debugf("init %d nodes, %d segments", len(m.nodes), len(m.segments))
	return nil
}

// Get 根据ID获取Segment实例，如果不存在则panic
func (m *SegmentManager) Get(id int32) entity.ISegment {
	if s, ok := m.data[id]; !ok {
		log.Panicf("no id %d in segment data", id)
		return nil
	} else {
		return s
	}
}

// GetOrError 根据ID获取Segment实例，如果不存在则返回错误
func (m *SegmentManager) GetOrError(id int32) (entity.ISegment, error) {
	if s, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in segment data", id)
	} else {
		return s, nil
	}
}

// Segments 获取所有路段
func (m *SegmentManager) Segments() map[int32]entity.ISegment {
	return lo.MapEntries(m.data, func(id int32, s *Segment) (int32, entity.ISegment) {
		return id, s
	})
}

// SegmentsFromNode 获取以node为起点的路段，按ID升序
func (m *SegmentManager) SegmentsFromNode(node int32) []entity.ISegment {
	return lo.Map(m.outgoing[node], func(s *Segment, _ int) entity.ISegment { return s })
}

// HasNode 判断节点是否存在
func (m *SegmentManager) HasNode(node int32) bool {
	_, ok := m.nodes[node]
	return ok
}

// TotalLength 获取路网总长度
func (m *SegmentManager) TotalLength() float64 {
	return lo.SumBy(m.segments, func(s *Segment) float64 { return s.length })
}

// TotalCapacity 获取路网容量估计（辆）
// 说明：未配置容量的路段按每10米路长可容一辆折算
func (m *SegmentManager) TotalCapacity() int32 {
	return lo.SumBy(m.segments, func(s *Segment) int32 {
		if s.capacity > 0 {
			return s.capacity
		}
		return int32(s.length / 10)
	})
}

// Prepare 准备阶段，处理所有Segment占用链表的缓冲区操作
func (m *SegmentManager) Prepare() {
	parallel.GoFor(m.segments, func(s *Segment) { s.prepare() })
}
