// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTrackerIdempotent(t *testing.T) {
	svc := NewProgressService()

	tr1 := svc.CreateTracker("task_a")
	tr2 := svc.CreateTracker("task_a")

	assert.Same(t, tr1, tr2)

	got, ok := svc.GetTracker("task_a")
	require.True(t, ok)
	assert.Same(t, tr1, got)

	_, ok = svc.GetTracker("task_b")
	assert.False(t, ok)
}

func TestProgressMonotonic(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_mono")

	tr.UpdateProgress(40, "写作中")
	tr.UpdateProgress(25, "回退的进度应被忽略")

	snap := tr.Snapshot()
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, "回退的进度应被忽略", snap.Message)
	assert.Equal(t, TaskStatusRunning, snap.Status)
}

func TestUpdateStageKeepsProgress(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_stage")

	tr.UpdateProgress(50, "")
	tr.UpdateStage(StageReview, 35, "审稿中")

	snap := tr.Snapshot()
	assert.Equal(t, StageReview, snap.Stage)
	assert.Equal(t, 50, snap.Progress)
}

func TestSubscribeReceivesImmediateSnapshot(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_sub")
	tr.UpdateStage(StagePlan, 25, "规划中")

	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	select {
	case update := <-ch:
		assert.Equal(t, StagePlan, update.Stage)
		assert.Equal(t, 25, update.Progress)
	case <-time.After(time.Second):
		t.Fatal("订阅后未立即收到当前快照")
	}

	tr.UpdateProgress(60, "写作中")
	select {
	case update := <-ch:
		assert.Equal(t, 60, update.Progress)
		assert.Equal(t, "写作中", update.Message)
	case <-time.After(time.Second):
		t.Fatal("更新后未收到推送")
	}
}

func TestCompleteClosesDoneOnce(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_done")

	tr.Complete("全部集数通过")

	select {
	case <-tr.Done:
	case <-time.After(time.Second):
		t.Fatal("Complete 后 Done 通道未关闭")
	}

	snap := tr.Snapshot()
	assert.Equal(t, TaskStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "全部集数通过", snap.Message)

	// 已结束的任务再次 Complete/Fail 不应改变状态或 panic
	tr.Fail("不应生效")
	assert.Equal(t, TaskStatusCompleted, tr.Snapshot().Status)
}

func TestFailMarksFailed(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_fail")

	tr.Fail("API 连接失败")

	snap := tr.Snapshot()
	assert.Equal(t, TaskStatusFailed, snap.Status)
	assert.Contains(t, snap.Message, "API 连接失败")

	select {
	case <-tr.Done:
	case <-time.After(time.Second):
		t.Fatal("Fail 后 Done 通道未关闭")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	svc := NewProgressService()
	tr := svc.CreateTracker("task_unsub")

	ch := tr.Subscribe()
	<-ch // 消费初始快照
	tr.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// 重复取消订阅不应 panic
	tr.Unsubscribe(ch)
}

func TestCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()

	finished := svc.CreateTracker("task_old")
	finished.Complete("")
	finished.mutex.Lock()
	finished.UpdateTime = time.Now().Add(-2 * time.Hour)
	finished.mutex.Unlock()

	running := svc.CreateTracker("task_running")
	running.mutex.Lock()
	running.UpdateTime = time.Now().Add(-2 * time.Hour)
	running.mutex.Unlock()

	fresh := svc.CreateTracker("task_fresh")
	fresh.Complete("")

	svc.CleanupCompletedTasks(time.Hour)

	_, ok := svc.GetTracker("task_old")
	assert.False(t, ok, "超龄已结束任务应被清理")
	_, ok = svc.GetTracker("task_running")
	assert.True(t, ok, "运行中任务不清理")
	_, ok = svc.GetTracker("task_fresh")
	assert.True(t, ok, "刚结束的任务不清理")
}
