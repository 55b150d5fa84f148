package aiqueue

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
)

// Валидные типы задач (закрытый набор)
var validTaskTypes = map[string]bool{
	models.TaskTypeReviewResponse:     true,
	models.TaskTypeProductCard:        true,
	models.TaskTypeCardImprovement:    true,
	models.TaskTypeSEOOptimization:    true,
	models.TaskTypeCompetitorAnalysis: true,
	models.TaskTypeAdCampaign:         true,
	models.TaskTypeDescription:        true,
	models.TaskTypePriceAnalysis:      true,
	models.TaskTypeReport:             true,
}

// Executor выполняет одну AI-задачу и возвращает JSON результата
type Executor interface {
	Execute(ctx context.Context, task *models.AITask) (string, error)
}

// Queue - очередь AI-задач в памяти с приоритетами.
// Задачи сохраняются в БД до постановки в очередь, обработка идёт
// одним фоновым циклом (draining гарантирует не более одного цикла).
type Queue struct {
	repo *repository.Repository
	exec Executor

	mu       sync.Mutex
	pending  []*models.AITask
	draining bool
}

// NewQueue создаёт новую очередь AI-задач
func NewQueue(repo *repository.Repository, exec Executor) *Queue {
	return &Queue{
		repo: repo,
		exec: exec,
	}
}

// TaskRequest - запрос на постановку задачи
type TaskRequest struct {
	PartnerID uint   `json:"partner_id"`
	AccountID *uint  `json:"account_id,omitempty"`
	TaskType  string `json:"task_type"`
	Priority  string `json:"priority,omitempty"`
	InputData string `json:"input_data"`
}

// Enqueue сохраняет задачу в БД и ставит её в очередь.
// Возвращает задачу только после успешного сохранения.
func (q *Queue) Enqueue(req *TaskRequest) (*models.AITask, error) {
	if !validTaskTypes[req.TaskType] {
		return nil, fmt.Errorf("неизвестный тип задачи: %s", req.TaskType)
	}

	priority := req.Priority
	switch priority {
	case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
	case "":
		priority = models.TaskPriorityMedium
	default:
		return nil, fmt.Errorf("неизвестный приоритет: %s", req.Priority)
	}

	task := &models.AITask{
		PartnerID: req.PartnerID,
		AccountID: req.AccountID,
		TaskType:  req.TaskType,
		Priority:  priority,
		Status:    models.TaskStatusPending,
		InputData: req.InputData,
	}

	// Сначала запись в БД - задача не должна потеряться при падении процесса
	if err := q.repo.CreateAITask(task); err != nil {
		return nil, fmt.Errorf("ошибка сохранения задачи: %w", err)
	}

	q.push(task)
	log.Printf("[AIQueue] Задача #%d (%s, %s) поставлена в очередь, партнёр %d",
		task.ID, task.TaskType, task.Priority, task.PartnerID)

	return task, nil
}

// EnqueueBatch ставит набор задач; невалидные пропускаются с логированием.
// Возвращает успешно поставленные задачи.
func (q *Queue) EnqueueBatch(reqs []*TaskRequest) []*models.AITask {
	tasks := make([]*models.AITask, 0, len(reqs))
	for i, req := range reqs {
		task, err := q.Enqueue(req)
		if err != nil {
			log.Printf("[AIQueue] Задача %d из пакета пропущена: %v", i+1, err)
			continue
		}
		tasks = append(tasks, task)
	}
	log.Printf("[AIQueue] Пакет обработан: %d из %d задач поставлено", len(tasks), len(reqs))
	return tasks
}

// push добавляет задачу в очередь и при необходимости запускает цикл обработки
func (q *Queue) push(task *models.AITask) {
	q.mu.Lock()
	q.pending = append(q.pending, task)
	// Стабильная сортировка: внутри одного приоритета сохраняется порядок постановки
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].PriorityWeight() > q.pending[j].PriorityWeight()
	})

	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// drain обрабатывает очередь до опустошения, затем снимает флаг.
// Одновременно работает не более одного цикла.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.process(task)
	}
}

// process выполняет одну задачу и сохраняет терминальный статус.
// Ошибка одной задачи не останавливает обработку остальных.
func (q *Queue) process(task *models.AITask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AIQueue] Паника при обработке задачи #%d: %v", task.ID, r)
			now := time.Now()
			if err := q.repo.MarkAITaskFailed(task.ID, fmt.Sprintf("внутренняя ошибка: %v", r), now); err != nil {
				log.Printf("[AIQueue] Ошибка сохранения статуса задачи #%d: %v", task.ID, err)
			}
		}
	}()

	startedAt := time.Now()
	if err := q.repo.MarkAITaskProcessing(task.ID, startedAt); err != nil {
		log.Printf("[AIQueue] Ошибка перевода задачи #%d в processing: %v", task.ID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	outputData, err := q.exec.Execute(ctx, task)
	completedAt := time.Now()

	if err != nil {
		log.Printf("[AIQueue] Задача #%d (%s) завершилась с ошибкой: %v", task.ID, task.TaskType, err)
		if saveErr := q.repo.MarkAITaskFailed(task.ID, err.Error(), completedAt); saveErr != nil {
			log.Printf("[AIQueue] Ошибка сохранения статуса задачи #%d: %v", task.ID, saveErr)
		}
		return
	}

	log.Printf("[AIQueue] Задача #%d (%s) выполнена за %v", task.ID, task.TaskType, completedAt.Sub(startedAt))
	if saveErr := q.repo.MarkAITaskCompleted(task.ID, outputData, completedAt); saveErr != nil {
		log.Printf("[AIQueue] Ошибка сохранения результата задачи #%d: %v", task.ID, saveErr)
	}
}

// GetStatus возвращает задачу по ID (nil для неизвестного ID)
func (q *Queue) GetStatus(id uint) (*models.AITask, error) {
	return q.repo.GetAITaskByID(id)
}

// GetPendingCount возвращает количество задач, ожидающих обработки
func (q *Queue) GetPendingCount() (int64, error) {
	return q.repo.CountPendingAITasks()
}

// GetPartnerTasks возвращает задачи партнёра, новые первыми
func (q *Queue) GetPartnerTasks(partnerID uint, limit int) ([]models.AITask, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.repo.GetPartnerAITasks(partnerID, limit)
}

// Restore восстанавливает pending-задачи из БД после рестарта процесса.
// Задачи, зависшие в processing, не трогаем: результат мог быть потерян,
// пусть партнёр перезапустит их вручную.
func (q *Queue) Restore() error {
	tasks, err := q.repo.GetPendingAITasks()
	if err != nil {
		return fmt.Errorf("ошибка восстановления очереди: %w", err)
	}

	for i := range tasks {
		q.push(&tasks[i])
	}

	if len(tasks) > 0 {
		log.Printf("[AIQueue] Восстановлено %d задач из БД", len(tasks))
	}
	return nil
}
