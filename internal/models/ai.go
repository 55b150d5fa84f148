package models

import (
	"time"
)

// Типы AI-задач (закрытый набор)
const (
	TaskTypeReviewResponse     = "review_response"     // ответ на отзыв покупателя
	TaskTypeProductCard        = "product_card"        // создание карточки товара
	TaskTypeCardImprovement    = "card_improvement"    // улучшение существующей карточки
	TaskTypeSEOOptimization    = "seo_optimization"    // SEO-оптимизация карточки
	TaskTypeCompetitorAnalysis = "competitor_analysis" // анализ конкурента
	TaskTypeAdCampaign         = "ad_campaign"         // создание рекламной кампании
	TaskTypeDescription        = "description"         // генерация описания товара
	TaskTypePriceAnalysis      = "price_analysis"      // анализ цен
	TaskTypeReport             = "report"              // сводный отчёт по продажам
)

// Приоритеты AI-задач
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Статусы AI-задач
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// AITask - задача AI-генерации. В терминальном статусе заполнено ровно одно
// из полей OutputData (completed) или Error (failed).
type AITask struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PartnerID uint   `gorm:"not null;index" json:"partner_id"`
	AccountID *uint  `json:"account_id,omitempty"`                // кабинет маркетплейса (опционально)
	TaskType  string `gorm:"size:30;not null" json:"task_type"`
	Priority  string `gorm:"size:10;default:'medium'" json:"priority"`
	Status    string `gorm:"size:15;default:'pending';index" json:"status"`

	InputData  string `gorm:"type:jsonb" json:"input_data"`            // входной payload (JSON)
	OutputData string `gorm:"type:jsonb" json:"output_data,omitempty"` // результат (JSON), только completed
	Error      string `gorm:"type:text" json:"error,omitempty"`        // сообщение об ошибке, только failed

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Partner     Partner    `gorm:"foreignKey:PartnerID" json:"-"`
}

// PriorityWeight возвращает вес приоритета для сортировки очереди
func (t *AITask) PriorityWeight() int {
	switch t.Priority {
	case TaskPriorityHigh:
		return 3
	case TaskPriorityMedium:
		return 2
	default:
		return 1
	}
}

// AISettings - настройки AI (редактируются через UI, ключ из конфига можно переопределить)
type AISettings struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Enabled          bool      `gorm:"default:false" json:"enabled"`
	APIKey           string    `gorm:"size:255" json:"api_key,omitempty"`
	AnalysisModel    string    `gorm:"size:50;default:'deepseek-reasoner'" json:"analysis_model"` // для аналитики (R1)
	SupportModel     string    `gorm:"size:50;default:'deepseek-chat'" json:"support_model"`      // для генерации (V3)
	MaxTokens        int       `gorm:"default:2500" json:"max_tokens"`
	RateLimitPerHour int       `gorm:"default:60" json:"rate_limit_per_hour"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AIUsageLog - лог использования AI (для контроля токенов)
type AIUsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RequestType  string    `gorm:"size:50" json:"request_type"` // тип задачи
	InputTokens  int       `gorm:"default:0" json:"input_tokens"`
	OutputTokens int       `gorm:"default:0" json:"output_tokens"`
	TotalTokens  int       `gorm:"default:0" json:"total_tokens"`
	Success      bool      `gorm:"default:true" json:"success"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
