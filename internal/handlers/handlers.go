package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/billing"
	"github.com/user/marketplace-billing-api/internal/services/statement"
)

// Handler - обработчики HTTP-запросов
type Handler struct {
	repo      *repository.Repository
	billing   *billing.Service
	sync      *billing.SyncService
	statement *statement.Generator
}

// NewHandler создаёт новый обработчик
func NewHandler(
	repo *repository.Repository,
	billingService *billing.Service,
	syncService *billing.SyncService,
	statementGen *statement.Generator,
) *Handler {
	return &Handler{
		repo:      repo,
		billing:   billingService,
		sync:      syncService,
		statement: statementGen,
	}
}

// parseID извлекает числовой параметр из пути
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный " + name})
		return 0, false
	}
	return uint(id), true
}

// === Partners ===

// GetPartners возвращает всех партнёров
func (h *Handler) GetPartners(c *gin.Context) {
	partners, err := h.repo.GetAllPartners()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, partners)
}

// GetPartner возвращает партнёра по ID
func (h *Handler) GetPartner(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	partner, err := h.repo.GetPartnerByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if partner == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партнёр не найден"})
		return
	}

	c.JSON(http.StatusOK, partner)
}

// CreatePartnerRequest - запрос на создание партнёра
type CreatePartnerRequest struct {
	Name                string  `json:"name" binding:"required"`
	ContactEmail        string  `json:"contact_email"`
	ContactPhone        string  `json:"contact_phone"`
	MonthlyFeeUsd       int64   `json:"monthly_fee_usd"`
	RevenueSharePercent float64 `json:"revenue_share_percent"`
	TrialDays           int     `json:"trial_days"`
}

// CreatePartner создаёт партнёра (по умолчанию на триале)
func (h *Handler) CreatePartner(c *gin.Context) {
	var req CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите название партнёра"})
		return
	}

	partner := &models.Partner{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		TariffType:   models.TariffTrial,
		IsActive:     true,
		AIEnabled:    true,
	}
	if req.MonthlyFeeUsd > 0 {
		partner.MonthlyFeeUsd = req.MonthlyFeeUsd
	}
	if req.RevenueSharePercent > 0 {
		partner.RevenueSharePercent = req.RevenueSharePercent
	}
	if req.TrialDays > 0 {
		trialEnd := time.Now().AddDate(0, 0, req.TrialDays)
		partner.TrialEndDate = &trialEnd
	}

	if err := h.repo.CreatePartner(partner); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, partner)
}

// UpdatePartnerRequest - редактируемые поля партнёра.
// Долг и блокировка меняются только пересчётом и биллинг-операциями.
type UpdatePartnerRequest struct {
	Name                *string  `json:"name"`
	ContactEmail        *string  `json:"contact_email"`
	ContactPhone        *string  `json:"contact_phone"`
	TariffType          *string  `json:"tariff_type"`
	MonthlyFeeUsd       *int64   `json:"monthly_fee_usd"`
	RevenueSharePercent *float64 `json:"revenue_share_percent"`
	IsActive            *bool    `json:"is_active"`
	AIEnabled           *bool    `json:"ai_enabled"`
}

// UpdatePartner обновляет данные партнёра
func (h *Handler) UpdatePartner(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	partner, err := h.repo.GetPartnerByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if partner == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партнёр не найден"})
		return
	}

	var req UpdatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
		return
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.ContactEmail != nil {
		fields["contact_email"] = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		fields["contact_phone"] = *req.ContactPhone
	}
	if req.TariffType != nil {
		fields["tariff_type"] = *req.TariffType
	}
	if req.MonthlyFeeUsd != nil {
		fields["monthly_fee_usd"] = *req.MonthlyFeeUsd
	}
	if req.RevenueSharePercent != nil {
		fields["revenue_share_percent"] = *req.RevenueSharePercent
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.AIEnabled != nil {
		fields["ai_enabled"] = *req.AIEnabled
	}

	if len(fields) > 0 {
		if err := h.repo.UpdatePartnerFields(id, fields); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	partner, err = h.repo.GetPartnerByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, partner)
}

// UnblockPartner снимает блокировку, если долг погашен
func (h *Handler) UnblockPartner(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	unblocked, err := h.billing.UnblockPartner(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !unblocked {
		c.JSON(http.StatusConflict, gin.H{"error": "Долг не погашен, блокировка остаётся"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Партнёр разблокирован"})
}

// === Marketplace accounts ===

// GetPartnerAccounts возвращает кабинеты партнёра
func (h *Handler) GetPartnerAccounts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	accounts, err := h.repo.GetPartnerAccounts(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// CreateAccountRequest - запрос на подключение кабинета
type CreateAccountRequest struct {
	Marketplace string `json:"marketplace" binding:"required"`
	Name        string `json:"name"`
	CampaignID  string `json:"campaign_id"`
	APIToken    string `json:"api_token"`
}

// CreatePartnerAccount подключает кабинет маркетплейса
func (h *Handler) CreatePartnerAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите маркетплейс"})
		return
	}

	account := &models.MarketplaceAccount{
		PartnerID:   id,
		Marketplace: req.Marketplace,
		Name:        req.Name,
		CampaignID:  req.CampaignID,
		APIToken:    req.APIToken,
		IsActive:    true,
	}

	if err := h.repo.CreateMarketplaceAccount(account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

// === Billing ===

// UpdateSalesRequest - ручное обновление продаж за месяц
type UpdateSalesRequest struct {
	Month         int    `json:"month" binding:"required"` // YYYYMM
	Marketplace   string `json:"marketplace" binding:"required"`
	TotalSalesUzs int64  `json:"total_sales_uzs"`
	TotalOrders   int    `json:"total_orders"`
}

// UpdateMonthlySales записывает продажи партнёра за месяц
func (h *Handler) UpdateMonthlySales(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateSalesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите месяц и маркетплейс"})
		return
	}

	tracking, err := h.billing.UpdateMonthlySales(id, req.Month, &billing.SalesUpdate{
		Marketplace:   req.Marketplace,
		TotalSalesUzs: req.TotalSalesUzs,
		TotalOrders:   req.TotalOrders,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tracking)
}

// GetPartnerTracking возвращает историю начислений партнёра
func (h *Handler) GetPartnerTracking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	limit := 24
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := h.repo.GetPartnerTracking(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// RecordPaymentRequest - запрос на регистрацию платежа
type RecordPaymentRequest struct {
	AmountUzs         int64  `json:"amount_uzs" binding:"required"`
	PaymentType       string `json:"payment_type" binding:"required"`
	PaymentMethod     string `json:"payment_method" binding:"required"`
	MonthlyTrackingID *uint  `json:"monthly_tracking_id"`
	TransactionID     string `json:"transaction_id"`
}

// RecordPayment регистрирует подтверждённый платёж партнёра
func (h *Handler) RecordPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат платежа"})
		return
	}

	payment, err := h.billing.RecordPayment(&billing.PaymentRequest{
		PartnerID:         id,
		AmountUzs:         req.AmountUzs,
		PaymentType:       req.PaymentType,
		PaymentMethod:     req.PaymentMethod,
		MonthlyTrackingID: req.MonthlyTrackingID,
		TransactionID:     req.TransactionID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// GetPartnerPayments возвращает платежи партнёра
func (h *Handler) GetPartnerPayments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	payments, err := h.repo.GetPartnerPayments(id, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, payments)
}

// GetPendingManualPayments возвращает ручные платежи на подтверждение
func (h *Handler) GetPendingManualPayments(c *gin.Context) {
	payments, err := h.repo.GetPendingManualPayments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, payments)
}

// ConfirmManualPayment подтверждает ручной платёж
func (h *Handler) ConfirmManualPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	userID, _ := c.Get("userID")
	adminID, _ := userID.(uint)

	payment, err := h.billing.ConfirmManualPayment(id, adminID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, billing.ErrPaymentAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, payment)
}

// === Statements ===

// GetMonthlyStatement генерирует PDF-выписку партнёра за месяц
func (h *Handler) GetMonthlyStatement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 200001 || month > 299912 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный месяц, нужен формат YYYYMM"})
		return
	}

	partner, err := h.repo.GetPartnerByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if partner == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партнёр не найден"})
		return
	}

	rows, err := h.repo.GetPartnerTrackingForMonth(id, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	pdfData, err := h.statement.GenerateMonthlyStatement(partner, month, rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("statement_%d_%d.pdf", id, month)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", pdfData)
}

// === Jobs / dashboard ===

// RunSync запускает синхронизацию продаж вручную
func (h *Handler) RunSync(c *gin.Context) {
	result, err := h.sync.RunDailySyncJob(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RunBlockCheck запускает проверку блокировок вручную
func (h *Handler) RunBlockCheck(c *gin.Context) {
	result, err := h.billing.CheckAndBlockOverduePartners()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDashboard возвращает сводку по всем партнёрам
func (h *Handler) GetDashboard(c *gin.Context) {
	partners, err := h.repo.GetAllPartners()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var totalDebt int64
	active := 0
	blocked := 0
	trial := 0
	for _, p := range partners {
		totalDebt += p.TotalDebtUzs
		if p.IsActive {
			active++
		}
		if p.IsBlocked() {
			blocked++
		}
		if p.TariffType == models.TariffTrial {
			trial++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"partners":       len(partners),
		"active":         active,
		"blocked":        blocked,
		"trial":          trial,
		"total_debt_uzs": totalDebt,
	})
}

// GetExchangeRates возвращает справочные курсы валют
func (h *Handler) GetExchangeRates(c *gin.Context) {
	rates, err := h.repo.GetExchangeRates(30)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rates)
}

// GetAuditLogs возвращает журнал действий
func (h *Handler) GetAuditLogs(c *gin.Context) {
	entries, err := h.repo.GetAuditLogs(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entries)
}
