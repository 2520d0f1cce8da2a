package voice

import (
	"context"
	"sync"
)

// =============================================================================
// 📥 合成任务队列
// =============================================================================

type jobKind int

const (
	// jobSegment 合成一个文本分段
	jobSegment jobKind = iota
	// jobTurnEnd 标记某一轮的最后一个任务已入队
	jobTurnEnd
	// jobShutdown 停止工作协程
	jobShutdown
)

// synthJob 是合成队列的任务。Segment 与 TurnEnd 都携带所属
// 轮次的 id，工作协程据此丢弃过期任务。Segment 还携带所属
// 轮次的 context：打断取消轮次时，进行中的合成随之取消，
// 不依赖工作协程先注册任务句柄。
type synthJob struct {
	kind   jobKind
	turnID int64
	ctx    context.Context
	text   string
	codec  string
}

func newSegmentJob(ctx context.Context, turnID int64, text, codec string) synthJob {
	return synthJob{kind: jobSegment, turnID: turnID, ctx: ctx, text: text, codec: codec}
}

func newTurnEndJob(turnID int64) synthJob {
	return synthJob{kind: jobTurnEnd, turnID: turnID}
}

func newShutdownJob() synthJob {
	return synthJob{kind: jobShutdown}
}

// jobQueue 是无界 FIFO 队列，支持阻塞取出与原子排空。
// 打断需要一次性移除所有排队任务，普通 channel 做不到这点。
type jobQueue struct {
	mu   sync.Mutex
	jobs []synthJob
	wake chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{wake: make(chan struct{}, 1)}
}

// Push 追加一个任务。
func (q *jobQueue) Push(job synthJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop 取出队首任务，队列为空时阻塞直到有任务或 ctx 结束。
func (q *jobQueue) Pop(ctx context.Context) (synthJob, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			more := len(q.jobs) > 0
			q.mu.Unlock()
			if more {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return synthJob{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Drain 原子地移除并返回所有排队任务。
func (q *jobQueue) Drain() []synthJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.jobs
	q.jobs = nil
	return drained
}

// Len 返回当前排队任务数。
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
