package segment

import (
	"sync"

	"github.com/tsinghua-fib-lab/mixed-traffic-sim/utils/container"
)

// segmentList 路段占用链表，管理路段上的车辆
// 功能：提供线程安全的车辆占用管理，支持缓冲式添加和删除操作
type segmentList[T container.IHasVAndLength] struct {
	list              *container.List[T]
	addBuffer         []*container.ListNode[T]
	addBufferMutex    sync.Mutex
	removeBuffer      []*container.ListNode[T]
	removeBufferMutex sync.Mutex
}

func newSegmentList[T container.IHasVAndLength](id string) segmentList[T] {
	return segmentList[T]{
		list: &container.List[T]{
			ID: id,
		},
		addBuffer:    make([]*container.ListNode[T], 0),
		removeBuffer: make([]*container.ListNode[T], 0),
	}
}

// prepare 准备阶段，处理缓冲区的添加和删除操作
// 说明：将缓冲区中的操作应用到主链表并重新排序，清空缓冲区
func (l *segmentList[T]) prepare() {
	if l == nil || l.list == nil {
		return
	}
	for _, v := range l.removeBuffer {
		l.list.Remove(v)
	}
	unsorted := l.list.PopUnsorted()
	l.list.Merge(append(l.addBuffer, unsorted...))
	l.removeBuffer = l.removeBuffer[:0]
	l.addBuffer = l.addBuffer[:0]
}

// add 添加节点到缓冲区，延迟到prepare阶段实际插入链表
func (l *segmentList[T]) add(node *container.ListNode[T]) {
	if node.Parent() != nil {
		log.Panic("add node who has parent")
	}
	l.addBufferMutex.Lock()
	l.addBuffer = append(l.addBuffer, node)
	l.addBufferMutex.Unlock()
}

// remove 将节点添加到删除缓冲区，延迟到prepare阶段实际从链表移除
func (l *segmentList[T]) remove(node *container.ListNode[T]) {
	if node.Parent() != l.list {
		log.Panicf("remove node %v (parent=%v) from wrong parent %+v", node, node.Parent(), l.list)
	}
	l.removeBufferMutex.Lock()
	l.removeBuffer = append(l.removeBuffer, node)
	l.removeBufferMutex.Unlock()
}
