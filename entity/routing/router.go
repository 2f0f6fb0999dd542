package routing

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
)

// ErrNoRoute 表示在当前路网状态下origin与destination不连通
var ErrNoRoute = errors.New("routing: no route")

// Router 导航模块
// 功能：在路段图上进行最少路段数的路径规划
// 说明：封闭路段与避让集中的路段视为不存在；
// 同一路网状态与同一输入的结果完全确定
type Router struct {
	segmentManager entity.ISegmentManager
}

// New 创建导航模块实例
func New(segmentManager entity.ISegmentManager) *Router {
	return &Router{segmentManager: segmentManager}
}

// FindRoute 路径规划
// 功能：从origin节点到destination节点，避开avoid中的路段与封闭路段
// 返回：路段ID序列；不连通时返回ErrNoRoute
// 算法说明：
// 1. 以节点为状态做BFS，扩展顺序按路段ID升序，保证结果确定
// 2. 跳过封闭路段与avoid集合中的路段
// 3. 回溯首达前驱得到路段序列
func (r *Router) FindRoute(origin, destination int32, avoid map[int32]struct{}) ([]int32, error) {
	if !r.segmentManager.HasNode(origin) {
		return nil, fmt.Errorf("routing: unknown origin node %d", origin)
	}
	if !r.segmentManager.HasNode(destination) {
		return nil, fmt.Errorf("routing: unknown destination node %d", destination)
	}
	if origin == destination {
		return []int32{}, nil
	}
	// BFS，记录首达每个节点的入边
	inEdge := map[int32]entity.ISegment{origin: nil}
	queue := []int32{origin}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, s := range r.segmentManager.SegmentsFromNode(node) {
			if _, ok := avoid[s.ID()]; ok {
				continue
			}
			if s.IsClosed() {
				continue
			}
			next := s.ToNode()
			if _, visited := inEdge[next]; visited {
				continue
			}
			inEdge[next] = s
			if next == destination {
				route := make([]int32, 0)
				for cur := destination; cur != origin; {
					edge := inEdge[cur]
					route = append(route, edge.ID())
					cur = edge.FromNode()
				}
				// 反转为从origin出发的顺序
				for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
					route[i], route[j] = route[j], route[i]
				}
				return route, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, ErrNoRoute
}
