package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/ai"
	"github.com/user/marketplace-billing-api/internal/services/aiqueue"
)

// AIHandler - обработчики AI-задач
type AIHandler struct {
	repo  *repository.Repository
	queue *aiqueue.Queue
	ai    *ai.Service
}

// NewAIHandler создаёт новый обработчик AI
func NewAIHandler(repo *repository.Repository, queue *aiqueue.Queue, aiService *ai.Service) *AIHandler {
	return &AIHandler{repo: repo, queue: queue, ai: aiService}
}

// checkPartnerAccess проверяет доступ партнёра к AI-функциям
func (h *AIHandler) checkPartnerAccess(c *gin.Context, partnerID uint) bool {
	partner, err := h.repo.GetPartnerByID(partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if partner == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партнёр не найден"})
		return false
	}
	if !partner.AIEnabled || partner.IsBlocked() {
		c.JSON(http.StatusForbidden, gin.H{"error": "AI-функции недоступны: проверьте тариф и задолженность"})
		return false
	}
	return true
}

// EnqueueTask ставит AI-задачу в очередь
func (h *AIHandler) EnqueueTask(c *gin.Context) {
	var req aiqueue.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат задачи"})
		return
	}

	if !h.checkPartnerAccess(c, req.PartnerID) {
		return
	}

	task, err := h.queue.Enqueue(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// EnqueueBatchRequest - пакет задач
type EnqueueBatchRequest struct {
	Tasks []*aiqueue.TaskRequest `json:"tasks" binding:"required"`
}

// EnqueueBatch ставит пакет AI-задач; невалидные пропускаются
func (h *AIHandler) EnqueueBatch(c *gin.Context) {
	var req EnqueueBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат пакета"})
		return
	}

	tasks := h.queue.EnqueueBatch(req.Tasks)
	c.JSON(http.StatusCreated, gin.H{
		"enqueued": len(tasks),
		"total":    len(req.Tasks),
		"tasks":    tasks,
	})
}

// GetTaskStatus возвращает состояние задачи
func (h *AIHandler) GetTaskStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный id"})
		return
	}

	task, err := h.queue.GetStatus(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Задача не найдена"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// GetPendingCount возвращает количество задач в очереди
func (h *AIHandler) GetPendingCount(c *gin.Context) {
	count, err := h.queue.GetPendingCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": count})
}

// GetPartnerTasks возвращает задачи партнёра (новые первыми)
func (h *AIHandler) GetPartnerTasks(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный id"})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	tasks, err := h.queue.GetPartnerTasks(uint(id), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// GetAISettings возвращает настройки AI
func (h *AIHandler) GetAISettings(c *gin.Context) {
	settings := h.ai.GetSettings()
	if settings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Настройки не найдены"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateAISettings обновляет настройки AI
func (h *AIHandler) UpdateAISettings(c *gin.Context) {
	var settings models.AISettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат настроек"})
		return
	}

	if err := h.ai.UpdateSettings(c.Request.Context(), &settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// GetAIUsage возвращает статистику использования AI
func (h *AIHandler) GetAIUsage(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			days = parsed
		}
	}

	stats, err := h.ai.GetUsageStats(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
