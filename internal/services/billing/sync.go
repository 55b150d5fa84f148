package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/marketplace"
	"golang.org/x/time/rate"
)

// ClientFactory создаёт API-клиент для кабинета маркетплейса
type ClientFactory func(account models.MarketplaceAccount) (marketplace.SalesClient, error)

// SyncService - ежедневная синхронизация продаж с маркетплейсами
type SyncService struct {
	repo    *repository.Repository
	billing *Service
	factory ClientFactory
	limiter *rate.Limiter // троттлинг запросов между партнёрами
}

// NewSyncService создаёт сервис синхронизации
func NewSyncService(repo *repository.Repository, billing *Service, factory ClientFactory) *SyncService {
	if factory == nil {
		factory = marketplace.NewClient
	}
	return &SyncService{
		repo:    repo,
		billing: billing,
		factory: factory,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// PartnerSyncResult - итог синхронизации одного партнёра
type PartnerSyncResult struct {
	PartnerID uint   `json:"partner_id"`
	Accounts  int    `json:"accounts"`
	Synced    int    `json:"synced"`
	Error     string `json:"error,omitempty"`
}

// SyncResult - итог ежедневного прогона
type SyncResult struct {
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Partners     []PartnerSyncResult `json:"partners"`
	Failed       int                 `json:"failed"`
	Blocked      int                 `json:"blocked"`
	TrialExpired int                 `json:"trial_expired"`
}

// RunDailySyncJob выполняет ежедневный прогон биллинга в фиксированном порядке:
// синхронизация продаж, пересчёт долгов, блокировки, истечение триалов.
// Ошибка одного партнёра не останавливает остальных.
func (s *SyncService) RunDailySyncJob(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{StartedAt: time.Now()}
	log.Println("[Sync] Запуск ежедневной синхронизации")

	partners, err := s.repo.GetActivePartners()
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки партнёров: %w", err)
	}

	now := time.Now()
	month := MonthKey(now)

	// Фаза 1: синхронизация продаж текущего месяца
	for _, partner := range partners {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		pr := s.syncPartner(ctx, &partner, now.Year(), now.Month(), month)
		if pr.Error != "" {
			result.Failed++
		}
		result.Partners = append(result.Partners, pr)
	}

	// Фаза 2: пересчёт долгов всех активных партнёров
	for _, partner := range partners {
		if _, err := s.billing.UpdatePartnerTotalDebt(partner.ID); err != nil {
			log.Printf("[Sync] Ошибка пересчёта долга партнёра %d: %v", partner.ID, err)
		}
	}

	// Фаза 3: блокировка просроченных
	blockResult, err := s.billing.CheckAndBlockOverduePartners()
	if err != nil {
		log.Printf("[Sync] Ошибка проверки блокировок: %v", err)
	} else {
		result.Blocked = blockResult.Blocked
	}

	// Фаза 4: истечение триалов
	expired, err := s.billing.CheckExpiredTrials()
	if err != nil {
		log.Printf("[Sync] Ошибка проверки триалов: %v", err)
	} else {
		result.TrialExpired = expired
	}

	result.FinishedAt = time.Now()
	log.Printf("[Sync] Синхронизация завершена за %v: партнёров %d, ошибок %d, заблокировано %d, триалов истекло %d",
		result.FinishedAt.Sub(result.StartedAt), len(result.Partners), result.Failed, result.Blocked, result.TrialExpired)

	return result, nil
}

// syncPartner синхронизирует продажи всех активных кабинетов партнёра
func (s *SyncService) syncPartner(ctx context.Context, partner *models.Partner, year int, monthOfYear time.Month, month int) PartnerSyncResult {
	pr := PartnerSyncResult{PartnerID: partner.ID}

	accounts, err := s.repo.GetActiveAccounts(partner.ID)
	if err != nil {
		pr.Error = fmt.Sprintf("ошибка загрузки кабинетов: %v", err)
		log.Printf("[Sync] Партнёр %d: %s", partner.ID, pr.Error)
		return pr
	}
	pr.Accounts = len(accounts)

	for _, account := range accounts {
		client, err := s.factory(account)
		if err != nil {
			log.Printf("[Sync] Партнёр %d, кабинет %d: %v", partner.ID, account.ID, err)
			continue
		}

		sales, err := client.GetMonthlySales(ctx, year, monthOfYear)
		if err != nil {
			pr.Error = fmt.Sprintf("кабинет %d: %v", account.ID, err)
			log.Printf("[Sync] Партнёр %d: %s", partner.ID, pr.Error)
			continue
		}

		if _, err := s.billing.UpdateMonthlySales(partner.ID, month, &SalesUpdate{
			Marketplace:   account.Marketplace,
			TotalSalesUzs: sales.TotalSalesUzs,
			TotalOrders:   sales.TotalOrders,
		}); err != nil {
			pr.Error = fmt.Sprintf("кабинет %d: %v", account.ID, err)
			log.Printf("[Sync] Партнёр %d: %s", partner.ID, pr.Error)
			continue
		}

		pr.Synced++
	}

	return pr
}
