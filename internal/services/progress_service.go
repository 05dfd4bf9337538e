// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// TaskStatus 长任务状态
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// ProgressUpdate 推送给订阅者的进度快照
type ProgressUpdate struct {
	Stage    string     `json:"stage"`    // 当前管线阶段：bible/plan/write/review/eval
	Progress int        `json:"progress"` // 进度百分比 (0-100)
	Message  string     `json:"message"`  // 描述性消息
	Status   TaskStatus `json:"status"`
}

// ProgressTracker 跟踪一次管线/审稿任务的进度。
// 订阅通道为有缓冲非阻塞发送，慢消费者丢弃中间快照。
type ProgressTracker struct {
	TaskID     string
	Stage      string
	Progress   int
	Message    string
	Status     TaskStatus
	StartTime  time.Time
	UpdateTime time.Time
	Done       chan struct{}

	subscribers map[chan ProgressUpdate]bool
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器；taskID 已存在时返回现有跟踪器
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "任务初始化中...",
		Status:      TaskStatusRunning,
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Done:        make(chan struct{}),
		subscribers: make(map[chan ProgressUpdate]bool),
	}
	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// Snapshot 返回当前进度快照
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.snapshotLocked()
}

func (t *ProgressTracker) snapshotLocked() ProgressUpdate {
	return ProgressUpdate{
		Stage:    t.Stage,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}
}

// UpdateStage 进入新的管线阶段并重置消息
func (t *ProgressTracker) UpdateStage(stage string, progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Stage = stage
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcastLocked()
}

// UpdateProgress 更新当前阶段内的进度。进度只增不减。
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcastLocked()
}

// Complete 标记任务完成并关闭 Done 通道
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskStatusRunning {
		return
	}
	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "任务已完成"
	}
	t.Status = TaskStatusCompleted
	t.UpdateTime = time.Now()
	t.broadcastLocked()
	close(t.Done)
}

// Fail 标记任务失败并关闭 Done 通道
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskStatusRunning {
		return
	}
	t.Message = fmt.Sprintf("任务失败: %s", errorMsg)
	t.Status = TaskStatusFailed
	t.UpdateTime = time.Now()
	t.broadcastLocked()
	close(t.Done)
}

// broadcastLocked 向所有订阅者非阻塞推送当前快照
func (t *ProgressTracker) broadcastLocked() {
	update := t.snapshotLocked()
	for subscriber := range t.subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe 订阅进度更新，立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.subscribers[subscriber] = true
	subscriber <- t.snapshotLocked()
	return subscriber
}

// Unsubscribe 取消订阅并关闭通道
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.subscribers[subscriber] {
		delete(t.subscribers, subscriber)
		close(subscriber)
	}
}

// CleanupCompletedTasks 清理超过 maxAge 未更新的已结束任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		ended := tracker.Status != TaskStatusRunning
		stale := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if ended && stale {
			delete(s.trackers, id)
		}
	}
}
