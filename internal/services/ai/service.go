package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/user/marketplace-billing-api/internal/config"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"golang.org/x/time/rate"
)

// Service - сервис AI-генерации контента (DeepSeek)
type Service struct {
	repo        *repository.Repository
	cfg         config.AIConfig
	client      *Client
	rateLimiter *rate.Limiter
	settings    *models.AISettings
	mu          sync.RWMutex
}

// NewService создаёт новый сервис AI
func NewService(repo *repository.Repository, cfg config.AIConfig) *Service {
	return &Service{
		repo:        repo,
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Initialize инициализирует AI клиент из настроек в БД (ключ из конфига как fallback)
func (s *Service) Initialize(ctx context.Context) error {
	settings, err := s.repo.GetAISettings()
	if err != nil {
		log.Printf("[AI] Ошибка загрузки настроек: %v", err)
		return err
	}

	if settings == nil {
		// Создаём настройки по умолчанию
		settings = &models.AISettings{
			Enabled:          s.cfg.APIKey != "",
			APIKey:           s.cfg.APIKey,
			AnalysisModel:    ModelReasonerR1,
			SupportModel:     ModelChatV3,
			MaxTokens:        s.cfg.MaxTokens,
			RateLimitPerHour: s.cfg.RateLimitPerHour,
		}
		if err := s.repo.SaveAISettings(settings); err != nil {
			log.Printf("[AI] Ошибка сохранения настроек по умолчанию: %v", err)
		}
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.updateRateLimiter(settings.RateLimitPerHour)

	apiKey := settings.APIKey
	if apiKey == "" {
		apiKey = s.cfg.APIKey
	}

	if settings.Enabled && apiKey != "" {
		client, err := NewClient(ctx, apiKey, settings.MaxTokens)
		if err != nil {
			log.Printf("[AI] Ошибка инициализации клиента: %v", err)
			return err
		}
		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		log.Println("[AI] DeepSeek сервис успешно инициализирован")
	} else {
		log.Println("[AI] Сервис отключён (нет API ключа или выключен)")
	}

	return nil
}

// updateRateLimiter обновляет лимитер запросов
func (s *Service) updateRateLimiter(requestsPerHour int) {
	if requestsPerHour <= 0 {
		requestsPerHour = 1
	}
	interval := time.Hour / time.Duration(requestsPerHour)
	// Burst = requestsPerHour чтобы сразу можно было делать запросы
	s.rateLimiter = rate.NewLimiter(rate.Every(interval), requestsPerHour)
	log.Printf("[AI] Rate limiter обновлён: %d запросов/час", requestsPerHour)
}

// IsEnabled проверяет, активен ли AI сервис
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && s.client.IsEnabled() && s.settings != nil && s.settings.Enabled
}

// GetSettings возвращает текущие настройки
func (s *Service) GetSettings() *models.AISettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings обновляет настройки AI
func (s *Service) UpdateSettings(ctx context.Context, settings *models.AISettings) error {
	if err := s.repo.SaveAISettings(settings); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.updateRateLimiter(settings.RateLimitPerHour)

	if settings.Enabled && settings.APIKey != "" {
		client, err := NewClient(ctx, settings.APIKey, settings.MaxTokens)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.client != nil {
			s.client.Close()
		}
		s.client = client
		s.mu.Unlock()
	}

	return nil
}

// GetAnalysisModel возвращает модель для аналитики (R1)
func (s *Service) GetAnalysisModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings != nil && s.settings.AnalysisModel != "" {
		return s.settings.AnalysisModel
	}
	return ModelReasonerR1
}

// GetSupportModel возвращает модель для генерации текстов (V3)
func (s *Service) GetSupportModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings != nil && s.settings.SupportModel != "" {
		return s.settings.SupportModel
	}
	return ModelChatV3
}

// generate выполняет запрос с учётом rate limit и пишет лог использования
func (s *Service) generate(ctx context.Context, requestType, model, systemPrompt, userPrompt string) (*GenerateResult, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("AI сервис отключён")
	}

	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("превышен лимит запросов к AI")
	}

	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	result, err := client.Generate(ctx, model, systemPrompt, userPrompt)
	if err != nil {
		s.logUsage(requestType, nil, err)
		return nil, err
	}

	s.logUsage(requestType, result, nil)
	return result, nil
}

// logUsage сохраняет статистику использования токенов
func (s *Service) logUsage(requestType string, result *GenerateResult, genErr error) {
	usageLog := &models.AIUsageLog{
		RequestType: requestType,
		Success:     genErr == nil,
	}
	if result != nil {
		usageLog.InputTokens = result.InputTokens
		usageLog.OutputTokens = result.OutputTokens
		usageLog.TotalTokens = result.TotalTokens
	}
	if genErr != nil {
		usageLog.ErrorMessage = genErr.Error()
	}
	if err := s.repo.CreateAIUsageLog(usageLog); err != nil {
		log.Printf("[AI] Ошибка записи лога использования: %v", err)
	}
}

// GetUsageStats возвращает статистику по токенам за N дней
func (s *Service) GetUsageStats(days int) (map[string]interface{}, error) {
	logs, err := s.repo.GetAIUsageLogs(days)
	if err != nil {
		return nil, err
	}

	totalTokens := 0
	successCount := 0
	failCount := 0
	byType := make(map[string]int)
	for _, l := range logs {
		totalTokens += l.TotalTokens
		if l.Success {
			successCount++
		} else {
			failCount++
		}
		byType[l.RequestType]++
	}

	return map[string]interface{}{
		"period_days":  days,
		"requests":     len(logs),
		"success":      successCount,
		"failed":       failCount,
		"total_tokens": totalTokens,
		"by_request":   byType,
	}, nil
}

// === Типизированные операции по видам задач ===

// ReviewResponseInput - входные данные для ответа на отзыв
type ReviewResponseInput struct {
	ProductName  string `json:"product_name"`
	ReviewText   string `json:"review_text"`
	Rating       int    `json:"rating"`
	CustomerName string `json:"customer_name,omitempty"`
}

// ReviewResponseResult - готовый ответ на отзыв
type ReviewResponseResult struct {
	Response string `json:"response"`
	Tone     string `json:"tone"`
}

// GenerateReviewResponse генерирует ответ на отзыв покупателя
func (s *Service) GenerateReviewResponse(ctx context.Context, in *ReviewResponseInput) (*ReviewResponseResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nОценка: %d из 5\nПокупатель: %s\nОтзыв:\n%s",
		in.ProductName, in.Rating, in.CustomerName, in.ReviewText)

	result, err := s.generate(ctx, models.TaskTypeReviewResponse, s.GetSupportModel(), systemReviewResponse, prompt)
	if err != nil {
		return nil, err
	}

	var out ReviewResponseResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductCardInput - входные данные для карточки товара
type ProductCardInput struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Features    []string `json:"features,omitempty"`
	Marketplace string   `json:"marketplace,omitempty"`
}

// ProductCardResult - сгенерированная карточка
type ProductCardResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Bullets     []string `json:"bullets"`
	Keywords    []string `json:"keywords"`
}

// CreateProductCard создаёт новую карточку товара
func (s *Service) CreateProductCard(ctx context.Context, in *ProductCardInput) (*ProductCardResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nКатегория: %s\nМаркетплейс: %s\nХарактеристики:\n- %s",
		in.ProductName, in.Category, in.Marketplace, strings.Join(in.Features, "\n- "))

	result, err := s.generate(ctx, models.TaskTypeProductCard, s.GetSupportModel(), systemProductCard, prompt)
	if err != nil {
		return nil, err
	}

	var out ProductCardResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CardImprovementInput - входные данные для улучшения карточки
type CardImprovementInput struct {
	Marketplace        string `json:"marketplace"`
	CurrentTitle       string `json:"current_title"`
	CurrentDescription string `json:"current_description"`
	SalesNote          string `json:"sales_note,omitempty"` // замечания продавца о продажах
}

// CardImprovementResult - улучшенная карточка
type CardImprovementResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Changes     []string `json:"changes"`
}

// ImproveCard предлагает улучшенную версию карточки
func (s *Service) ImproveCard(ctx context.Context, in *CardImprovementInput) (*CardImprovementResult, error) {
	prompt := fmt.Sprintf("Маркетплейс: %s\nТекущий заголовок: %s\nТекущее описание:\n%s\nЗамечания продавца: %s",
		in.Marketplace, in.CurrentTitle, in.CurrentDescription, in.SalesNote)

	result, err := s.generate(ctx, models.TaskTypeCardImprovement, s.GetSupportModel(), systemCardImprovement, prompt)
	if err != nil {
		return nil, err
	}

	var out CardImprovementResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SEOInput - входные данные для SEO-оптимизации
type SEOInput struct {
	ProductName  string   `json:"product_name"`
	Marketplace  string   `json:"marketplace"`
	CurrentTitle string   `json:"current_title"`
	Keywords     []string `json:"keywords,omitempty"`
}

// SEOResult - результат SEO-оптимизации
type SEOResult struct {
	Title         string   `json:"title"`
	Keywords      []string `json:"keywords"`
	SearchQueries []string `json:"search_queries"`
}

// OptimizeSEO оптимизирует карточку под поисковую выдачу
func (s *Service) OptimizeSEO(ctx context.Context, in *SEOInput) (*SEOResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nМаркетплейс: %s\nТекущий заголовок: %s\nИзвестные ключевые слова: %s",
		in.ProductName, in.Marketplace, in.CurrentTitle, strings.Join(in.Keywords, ", "))

	result, err := s.generate(ctx, models.TaskTypeSEOOptimization, s.GetSupportModel(), systemSEOOptimization, prompt)
	if err != nil {
		return nil, err
	}

	var out SEOResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompetitorAnalysisInput - входные данные для анализа конкурента
type CompetitorAnalysisInput struct {
	ProductName        string `json:"product_name"`
	CompetitorName     string `json:"competitor_name"`
	CompetitorPriceUzs int64  `json:"competitor_price_uzs"`
	OwnPriceUzs        int64  `json:"own_price_uzs"`
}

// CompetitorAnalysisResult - результат анализа конкурента
type CompetitorAnalysisResult struct {
	Summary        string   `json:"summary"`
	Advantages     []string `json:"advantages"`
	Risks          []string `json:"risks"`
	Recommendation string   `json:"recommendation"`
}

// AnalyzeCompetitor анализирует позицию относительно конкурента
func (s *Service) AnalyzeCompetitor(ctx context.Context, in *CompetitorAnalysisInput) (*CompetitorAnalysisResult, error) {
	prompt := fmt.Sprintf("Наш товар: %s, цена %d UZS\nКонкурент: %s, цена %d UZS",
		in.ProductName, in.OwnPriceUzs, in.CompetitorName, in.CompetitorPriceUzs)

	result, err := s.generate(ctx, models.TaskTypeCompetitorAnalysis, s.GetAnalysisModel(), systemCompetitorAnalysis, prompt)
	if err != nil {
		return nil, err
	}

	var out CompetitorAnalysisResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdCampaignInput - входные данные для рекламной кампании
type AdCampaignInput struct {
	ProductName    string `json:"product_name"`
	Marketplace    string `json:"marketplace"`
	BudgetUzs      int64  `json:"budget_uzs"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// AdCampaignResult - план рекламной кампании
type AdCampaignResult struct {
	Strategy       string   `json:"strategy"`
	Headlines      []string `json:"headlines"`
	DailyBudgetUzs int64    `json:"daily_budget_uzs"`
}

// CreateAdCampaign составляет план рекламной кампании
func (s *Service) CreateAdCampaign(ctx context.Context, in *AdCampaignInput) (*AdCampaignResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nМаркетплейс: %s\nБюджет: %d UZS в месяц\nЦелевая аудитория: %s",
		in.ProductName, in.Marketplace, in.BudgetUzs, in.TargetAudience)

	result, err := s.generate(ctx, models.TaskTypeAdCampaign, s.GetAnalysisModel(), systemAdCampaign, prompt)
	if err != nil {
		return nil, err
	}

	var out AdCampaignResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DescriptionInput - входные данные для описания товара
type DescriptionInput struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Features    []string `json:"features,omitempty"`
}

// DescriptionResult - сгенерированное описание
type DescriptionResult struct {
	Description string `json:"description"`
}

// GenerateDescription генерирует описание товара
func (s *Service) GenerateDescription(ctx context.Context, in *DescriptionInput) (*DescriptionResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nКатегория: %s\nХарактеристики:\n- %s",
		in.ProductName, in.Category, strings.Join(in.Features, "\n- "))

	result, err := s.generate(ctx, models.TaskTypeDescription, s.GetSupportModel(), systemDescription, prompt)
	if err != nil {
		return nil, err
	}

	var out DescriptionResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PriceAnalysisInput - входные данные для анализа цен
type PriceAnalysisInput struct {
	ProductName         string  `json:"product_name"`
	OwnPriceUzs         int64   `json:"own_price_uzs"`
	CostUzs             int64   `json:"cost_uzs,omitempty"`
	CompetitorPricesUzs []int64 `json:"competitor_prices_uzs,omitempty"`
}

// PriceAnalysisResult - рекомендация по цене
type PriceAnalysisResult struct {
	RecommendedPriceUzs int64   `json:"recommended_price_uzs"`
	MarginPercent       float64 `json:"margin_percent"`
	Rationale           string  `json:"rationale"`
}

// AnalyzePricing анализирует цены и рекомендует оптимальную
func (s *Service) AnalyzePricing(ctx context.Context, in *PriceAnalysisInput) (*PriceAnalysisResult, error) {
	prompt := fmt.Sprintf("Товар: %s\nНаша цена: %d UZS\nСебестоимость: %d UZS\nЦены конкурентов: %v",
		in.ProductName, in.OwnPriceUzs, in.CostUzs, in.CompetitorPricesUzs)

	result, err := s.generate(ctx, models.TaskTypePriceAnalysis, s.GetAnalysisModel(), systemPriceAnalysis, prompt)
	if err != nil {
		return nil, err
	}

	var out PriceAnalysisResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportInput - входные данные для отчёта по продажам
type ReportInput struct {
	Month         int    `json:"month"` // YYYYMM
	Marketplace   string `json:"marketplace,omitempty"`
	TotalSalesUzs int64  `json:"total_sales_uzs"`
	TotalOrders   int    `json:"total_orders"`
}

// ReportResult - сводный отчёт
type ReportResult struct {
	Summary         string   `json:"summary"`
	Highlights      []string `json:"highlights"`
	Recommendations []string `json:"recommendations"`
}

// GenerateReport составляет сводный отчёт по продажам за месяц
func (s *Service) GenerateReport(ctx context.Context, in *ReportInput) (*ReportResult, error) {
	prompt := fmt.Sprintf("Месяц: %d\nМаркетплейс: %s\nПродажи: %d UZS\nЗаказов: %d",
		in.Month, in.Marketplace, in.TotalSalesUzs, in.TotalOrders)

	result, err := s.generate(ctx, models.TaskTypeReport, s.GetAnalysisModel(), systemReport, prompt)
	if err != nil {
		return nil, err
	}

	var out ReportResult
	if err := ExtractJSON(result.Response, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
