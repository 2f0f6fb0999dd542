package vehicle

import (
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/container"
)

const (
	// 连续被推迟该次数后提升到最高优先级，保证低优先级车辆不会饿死
	starvationPromoteDefers = 8
)

// resolveRepositions 混合交互仲裁
// 功能：对同一路段上空间声明重叠的换位请求分组，每组只放行一个
// 返回：获准与被推迟的请求
// 算法说明：
// 1. 请求按路段分组，跨路段的请求互不冲突
// 2. 同路段内按空间声明重叠关系求连通分量
// 3. 每个分量内按（优先级别，车辆ID）的组合键取最小者放行，
//    急救车 > 公交 > 卡车 > 小汽车 > 三轮 > 两轮，平级时ID小者胜
// 4. 连续被推迟超过阈值的请求提升为最高优先级别
// 5. 结果与请求提交顺序无关，同一输入必然得到同一结果
func resolveRepositions(requests []*repositionRequest) (granted, deferred []*repositionRequest) {
	bySegment := make(map[int32][]*repositionRequest)
	for _, r := range requests {
		bySegment[r.seg.ID()] = append(bySegment[r.seg.ID()], r)
	}
	for _, group := range bySegment {
		// 重叠关系的连通分量
		component := make([]int, len(group))
		for i := range component {
			component[i] = i
		}
		var find func(int) int
		find = func(i int) int {
			if component[i] != i {
				component[i] = find(component[i])
			}
			return component[i]
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].overlaps(group[j]) {
					component[find(i)] = find(j)
				}
			}
		}
		members := make(map[int][]*repositionRequest)
		for i, r := range group {
			root := find(i)
			members[root] = append(members[root], r)
		}
		for _, component := range members {
			if len(component) == 1 {
				granted = append(granted, component[0])
				continue
			}
			pq := container.NewPriorityQueue[*repositionRequest]()
			for _, r := range component {
				pq.Push(r, arbitrationKey(r))
			}
			pq.Heapify()
			winner, _ := pq.HeapPop()
			granted = append(granted, winner)
			for pq.Len() > 0 {
				loser, _ := pq.HeapPop()
				deferred = append(deferred, loser)
			}
		}
	}
	return granted, deferred
}

// arbitrationKey 仲裁组合键，越小越优先
func arbitrationKey(r *repositionRequest) float64 {
	class := r.v.PriorityClass()
	if r.v.consecutiveDefers >= starvationPromoteDefers {
		class = entity.PriorityEmergency
	}
	return float64(class)*1e8 + float64(r.v.id)
}
