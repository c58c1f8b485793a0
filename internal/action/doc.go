// Package action 实现预约系统的核心操作。
//
// # 架构概述
//
// 预约的创建通过 Admission Chain 模式处理，取消和查询直接委托给存储层。
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                      Reservations                           │
//	│  统一入口，协调各 Action 的执行并发布事件                    │
//	└─────────────────────────────────────────────────────────────┘
//	              │                         │
//	              ▼                         ▼
//	        ┌──────────┐             ┌──────────────┐
//	        │  Create  │             │ Cancel/List  │
//	        │  Chain   │             │  passthrough │
//	        └──────────┘             └──────────────┘
//
// # Create 流程
//
//	IntervalAction     start < end，否则 ErrInvalidInterval
//	      │
//	FutureStartAction  start > now（每次调用读取时钟），否则 ErrPastReservation
//	      │
//	ConflictAction     进入房间临界区，扫描已有预约，命中则 ErrOverlapConflict
//	      │            通过 c.Next() 在持锁期间执行后续 action
//	CommitAction       写入存储，分配 id 和 created_at
//	      │
//	PublishAction      仍在临界区内发布 created 事件
//
// 校验顺序是对外契约：区间形状 → 是否过去 → 是否冲突。
//
// # 并发
//
// 同一房间的 {列出, 冲突扫描, 写入} 在同一把房间锁内完成，取消也持有同一把锁；
// 不同房间之间互不阻塞。
//
// # 事件
//
// 创建和取消成功后通过 EventPublisher 投递到消息队列（memory/kafka/redis），
// 投递发生在房间锁内，同一房间的事件按提交顺序发出。投递失败只记录日志，
// 不影响操作结果。事件订阅者不能同步回调同一房间的创建或取消。
package action
