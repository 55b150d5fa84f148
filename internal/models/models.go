package models

import (
	"time"
)

// Тарифы партнёра
const (
	TariffTrial        = "trial"
	TariffPremium      = "premium"
	TariffExpiredTrial = "expired_trial"
)

// Маркетплейсы
const (
	MarketplaceYandex      = "yandex_market"
	MarketplaceUzum        = "uzum"
	MarketplaceWildberries = "wildberries"
)

// Типы платежей
const (
	PaymentTypeRevenueShare = "revenue_share"
	PaymentTypeMonthlyFee   = "monthly_fee"
	PaymentTypeSetupFee     = "setup_fee"
)

// Способы оплаты
const (
	PaymentMethodClick  = "click"
	PaymentMethodPayme  = "payme"
	PaymentMethodManual = "manual"
)

// Статусы платежа
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// Partner - партнёр (продавец на маркетплейсах)
type Partner struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	ContactEmail string `gorm:"size:255" json:"contact_email"`
	ContactPhone string `gorm:"size:50" json:"contact_phone"`

	// Биллинг
	TariffType          string     `gorm:"size:20;default:'trial'" json:"tariff_type"` // trial, premium, expired_trial
	TrialEndDate        *time.Time `json:"trial_end_date,omitempty"`                   // конец триала
	MonthlyFeeUsd       int64      `gorm:"default:499" json:"monthly_fee_usd"`         // абонплата, USD
	RevenueSharePercent float64    `gorm:"default:0.04" json:"revenue_share_percent"`  // доля с оборота
	SetupPaid           bool       `gorm:"default:false" json:"setup_paid"`            // оплачен ли setup fee
	TotalDebtUzs        int64      `gorm:"default:0" json:"total_debt_uzs"`            // кэш долга, всегда пересчитывается

	// Блокировка
	BlockedUntil *time.Time `json:"blocked_until,omitempty"` // задолженность просрочена
	BlockReason  string     `gorm:"size:255" json:"block_reason,omitempty"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	AIEnabled bool `gorm:"default:true" json:"ai_enabled"` // доступ к AI-генерации

	CreatedAt time.Time            `gorm:"autoCreateTime" json:"created_at"`
	Accounts  []MarketplaceAccount `gorm:"foreignKey:PartnerID" json:"accounts,omitempty"`
}

// IsBlocked возвращает true, если партнёр сейчас заблокирован
func (p *Partner) IsBlocked() bool {
	return p.BlockedUntil != nil && p.BlockedUntil.After(time.Now())
}

// MarketplaceAccount - кабинет партнёра на маркетплейсе
type MarketplaceAccount struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PartnerID   uint      `gorm:"not null;index" json:"partner_id"`
	Marketplace string    `gorm:"size:30;not null" json:"marketplace"` // yandex_market, uzum, wildberries
	Name        string    `gorm:"size:255" json:"name"`                // название магазина
	CampaignID  string    `gorm:"size:50" json:"campaign_id"`          // ID кабинета в API маркетплейса
	APIToken    string    `gorm:"size:255" json:"-"`                   // токен (скрыт в JSON)
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Partner     Partner   `gorm:"foreignKey:PartnerID" json:"-"`
}

// MonthlySalesTracking - продажи партнёра за месяц по одному маркетплейсу.
// Уникальность по (partner_id, month, marketplace), повторный sync перезаписывает итоги.
type MonthlySalesTracking struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PartnerID   uint   `gorm:"not null;uniqueIndex:idx_monthly_tracking" json:"partner_id"`
	Month       int    `gorm:"not null;uniqueIndex:idx_monthly_tracking" json:"month"` // YYYYMM
	Marketplace string `gorm:"size:30;not null;uniqueIndex:idx_monthly_tracking" json:"marketplace"`

	TotalSalesUzs int64 `gorm:"default:0" json:"total_sales_uzs"`
	TotalOrders   int   `gorm:"default:0" json:"total_orders"`

	// Производные суммы (фиксируются при расчёте)
	RevenueShareUzs int64 `gorm:"default:0" json:"revenue_share_uzs"`
	MonthlyFeeUzs   int64 `gorm:"default:0" json:"monthly_fee_uzs"`
	TotalDebtUzs    int64 `gorm:"default:0" json:"total_debt_uzs"` // revenue_share + monthly_fee

	IsPaid        bool       `gorm:"default:false" json:"is_paid"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaidAmountUzs int64      `gorm:"default:0" json:"paid_amount_uzs"`
	LastSyncAt    time.Time  `json:"last_sync_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Partner   Partner   `gorm:"foreignKey:PartnerID" json:"-"`
}

// RevenueSharePayment - платёж партнёра
type RevenueSharePayment struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	PartnerID         uint   `gorm:"not null;index" json:"partner_id"`
	MonthlyTrackingID *uint  `json:"monthly_tracking_id,omitempty"`        // платёж за конкретный месяц
	AmountUzs         int64  `gorm:"not null" json:"amount_uzs"`
	PaymentType       string `gorm:"size:20;not null" json:"payment_type"` // revenue_share, monthly_fee, setup_fee
	PaymentMethod     string `gorm:"size:20;not null" json:"payment_method"` // click, payme, manual
	TransactionID     string `gorm:"size:64" json:"transaction_id"`
	Status            string `gorm:"size:20;default:'pending'" json:"status"` // pending, completed
	ConfirmedBy       *uint  `json:"confirmed_by,omitempty"`                  // админ, подтвердивший ручной платёж

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Partner     Partner    `gorm:"foreignKey:PartnerID" json:"-"`
}

// AuditLog - журнал действий (append-only)
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:50;not null" json:"action"` // payment_recorded, partner_blocked и т.д.
	EntityType string    `gorm:"size:50" json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	PartnerID  *uint     `gorm:"index" json:"partner_id,omitempty"`
	Payload    string    `gorm:"type:jsonb" json:"payload,omitempty"` // детали события (JSON)
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ExchangeRate - справочный курс валюты ЦБ РУз (для дашборда;
// в расчётах биллинга используется фиксированный курс из конфига)
type ExchangeRate struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CurrencyFrom string    `gorm:"size:3;not null" json:"currency_from"` // USD, EUR, RUB
	CurrencyTo   string    `gorm:"size:3;default:'UZS'" json:"currency_to"`
	Rate         float64   `gorm:"not null" json:"rate"`
	RateDate     time.Time `gorm:"type:date;not null" json:"rate_date"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
