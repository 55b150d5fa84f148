package aiqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubExecutor записывает порядок выполнения, опционально блокируется на gate
// и возвращает ошибки для заданных типов задач
type stubExecutor struct {
	mu       sync.Mutex
	executed []uint
	gate     chan struct{} // если задан, каждый Execute ждёт сигнала
	failType string
}

func (e *stubExecutor) Execute(ctx context.Context, task *models.AITask) (string, error) {
	if e.gate != nil {
		<-e.gate
	}

	e.mu.Lock()
	e.executed = append(e.executed, task.ID)
	e.mu.Unlock()

	if e.failType != "" && task.TaskType == e.failType {
		return "", errors.New("генерация не удалась")
	}
	return `{"description":"ok"}`, nil
}

func (e *stubExecutor) order() []uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint, len(e.executed))
	copy(out, e.executed)
	return out
}

func newTestQueue(t *testing.T, exec Executor) (*Queue, *repository.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, repository.AutoMigrate(db), "migrate")

	repo := repository.NewRepository(db)
	return NewQueue(repo, exec), repo
}

func taskRequest(taskType, priority string) *TaskRequest {
	return &TaskRequest{
		PartnerID: 1,
		TaskType:  taskType,
		Priority:  priority,
		InputData: `{"product_name":"Чайник"}`,
	}
}

func waitCompleted(t *testing.T, repo *repository.Repository, id uint) *models.AITask {
	t.Helper()
	var task *models.AITask
	require.Eventually(t, func() bool {
		got, err := repo.GetAITaskByID(id)
		if err != nil || got == nil {
			return false
		}
		if got.Status != models.TaskStatusCompleted && got.Status != models.TaskStatusFailed {
			return false
		}
		task = got
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func TestEnqueuePersistsBeforeReturn(t *testing.T) {
	exec := &stubExecutor{gate: make(chan struct{})}
	queue, repo := newTestQueue(t, exec)

	task, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium))
	require.NoError(t, err)
	require.NotZero(t, task.ID, "ID присвоен БД до возврата")

	// Задача уже в БД, хотя результата ещё нет
	got, err := repo.GetAITaskByID(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Contains(t, []string{models.TaskStatusPending, models.TaskStatusProcessing}, got.Status)

	close(exec.gate)
	waitCompleted(t, repo, task.ID)
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	queue, _ := newTestQueue(t, &stubExecutor{})

	_, err := queue.Enqueue(taskRequest("translate_poem", models.TaskPriorityMedium))
	require.Error(t, err)

	_, err = queue.Enqueue(taskRequest(models.TaskTypeDescription, "urgent"))
	require.Error(t, err)
}

func TestEnqueueDefaultPriority(t *testing.T) {
	exec := &stubExecutor{}
	queue, repo := newTestQueue(t, exec)

	task, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, ""))
	require.NoError(t, err)
	require.Equal(t, models.TaskPriorityMedium, task.Priority)

	waitCompleted(t, repo, task.ID)
}

func TestQueuePriorityOrdering(t *testing.T) {
	exec := &stubExecutor{gate: make(chan struct{}, 16)}
	queue, repo := newTestQueue(t, exec)

	// Первая задача занимает цикл обработки
	first, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := repo.GetAITaskByID(first.ID)
		return err == nil && got != nil && got.Status == models.TaskStatusProcessing
	}, 5*time.Second, 10*time.Millisecond)

	// Пока цикл заблокирован, ставим задачи вразнобой
	low, err := queue.Enqueue(taskRequest(models.TaskTypeReport, models.TaskPriorityLow))
	require.NoError(t, err)
	high, err := queue.Enqueue(taskRequest(models.TaskTypeReviewResponse, models.TaskPriorityHigh))
	require.NoError(t, err)
	medium1, err := queue.Enqueue(taskRequest(models.TaskTypeProductCard, models.TaskPriorityMedium))
	require.NoError(t, err)
	medium2, err := queue.Enqueue(taskRequest(models.TaskTypeSEOOptimization, models.TaskPriorityMedium))
	require.NoError(t, err)

	// Выпускаем все задачи
	for i := 0; i < 5; i++ {
		exec.gate <- struct{}{}
	}

	waitCompleted(t, repo, low.ID)

	// high раньше medium, medium раньше low; внутри medium - FIFO
	require.Equal(t, []uint{first.ID, high.ID, medium1.ID, medium2.ID, low.ID}, exec.order())
}

func TestTaskTerminalStates(t *testing.T) {
	exec := &stubExecutor{failType: models.TaskTypeReport}
	queue, repo := newTestQueue(t, exec)

	ok, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium))
	require.NoError(t, err)
	bad, err := queue.Enqueue(taskRequest(models.TaskTypeReport, models.TaskPriorityMedium))
	require.NoError(t, err)

	completed := waitCompleted(t, repo, ok.ID)
	require.Equal(t, models.TaskStatusCompleted, completed.Status)
	require.NotEmpty(t, completed.OutputData)
	require.Empty(t, completed.Error)
	require.NotNil(t, completed.StartedAt)
	require.NotNil(t, completed.CompletedAt)

	failed := waitCompleted(t, repo, bad.ID)
	require.Equal(t, models.TaskStatusFailed, failed.Status)
	require.Empty(t, failed.OutputData)
	require.NotEmpty(t, failed.Error)
	require.NotNil(t, failed.CompletedAt)
}

func TestFailureDoesNotStopQueue(t *testing.T) {
	exec := &stubExecutor{failType: models.TaskTypeReport}
	queue, repo := newTestQueue(t, exec)

	bad, err := queue.Enqueue(taskRequest(models.TaskTypeReport, models.TaskPriorityHigh))
	require.NoError(t, err)
	ok, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityLow))
	require.NoError(t, err)

	waitCompleted(t, repo, bad.ID)

	completed := waitCompleted(t, repo, ok.ID)
	require.Equal(t, models.TaskStatusCompleted, completed.Status)
}

func TestEnqueueBatchSkipsInvalid(t *testing.T) {
	exec := &stubExecutor{}
	queue, repo := newTestQueue(t, exec)

	tasks := queue.EnqueueBatch([]*TaskRequest{
		taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium),
		taskRequest("bad_type", models.TaskPriorityMedium),
		taskRequest(models.TaskTypeProductCard, models.TaskPriorityHigh),
	})

	require.Len(t, tasks, 2, "невалидная задача пропущена, остальные поставлены")

	for _, task := range tasks {
		waitCompleted(t, repo, task.ID)
	}
}

func TestEnqueueBatchEmpty(t *testing.T) {
	queue, repo := newTestQueue(t, &stubExecutor{})

	tasks := queue.EnqueueBatch(nil)
	require.Empty(t, tasks)

	tasks = queue.EnqueueBatch([]*TaskRequest{})
	require.Empty(t, tasks)

	// Ни одной задачи не сохранено
	var count int64
	require.NoError(t, repo.DB().Model(&models.AITask{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGetStatusUnknown(t *testing.T) {
	queue, _ := newTestQueue(t, &stubExecutor{})

	task, err := queue.GetStatus(424242)
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestGetPendingCount(t *testing.T) {
	exec := &stubExecutor{gate: make(chan struct{}, 16)}
	queue, repo := newTestQueue(t, exec)

	first, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium))
	require.NoError(t, err)
	second, err := queue.Enqueue(taskRequest(models.TaskTypeProductCard, models.TaskPriorityMedium))
	require.NoError(t, err)

	// Первая задача ушла в processing, вторая ждёт
	require.Eventually(t, func() bool {
		got, err := repo.GetAITaskByID(first.ID)
		return err == nil && got != nil && got.Status == models.TaskStatusProcessing
	}, 5*time.Second, 10*time.Millisecond)

	count, err := queue.GetPendingCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	exec.gate <- struct{}{}
	exec.gate <- struct{}{}
	waitCompleted(t, repo, second.ID)

	count, err = queue.GetPendingCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestGetPartnerTasksLimit(t *testing.T) {
	exec := &stubExecutor{}
	queue, repo := newTestQueue(t, exec)

	var last *models.AITask
	for i := 0; i < 3; i++ {
		task, err := queue.Enqueue(taskRequest(models.TaskTypeDescription, models.TaskPriorityMedium))
		require.NoError(t, err)
		last = task
	}
	waitCompleted(t, repo, last.ID)

	tasks, err := queue.GetPartnerTasks(1, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	// Лимит по умолчанию
	tasks, err = queue.GetPartnerTasks(1, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
}

func TestRestoreReenqueuesPending(t *testing.T) {
	exec := &stubExecutor{}
	queue, repo := newTestQueue(t, exec)

	// Задача, оставшаяся pending после рестарта
	orphan := &models.AITask{
		PartnerID: 1,
		TaskType:  models.TaskTypeDescription,
		Priority:  models.TaskPriorityMedium,
		Status:    models.TaskStatusPending,
		InputData: `{"product_name":"Чайник"}`,
	}
	require.NoError(t, repo.CreateAITask(orphan))

	require.NoError(t, queue.Restore())

	completed := waitCompleted(t, repo, orphan.ID)
	require.Equal(t, models.TaskStatusCompleted, completed.Status)
}
