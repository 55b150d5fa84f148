package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/marketplace-billing-api/internal/models"
)

// MonthlySales - итоги продаж кабинета за месяц
type MonthlySales struct {
	TotalSalesUzs int64 `json:"total_sales_uzs"`
	TotalOrders   int   `json:"total_orders"`
}

// SalesClient получает итоги продаж кабинета за месяц
type SalesClient interface {
	GetMonthlySales(ctx context.Context, year int, month time.Month) (*MonthlySales, error)
}

// NewClient создаёт клиент API для кабинета маркетплейса.
// Возвращает ошибку для маркетплейсов без реализованной интеграции.
func NewClient(account models.MarketplaceAccount) (SalesClient, error) {
	switch account.Marketplace {
	case models.MarketplaceYandex:
		return NewYandexClient(account.CampaignID, account.APIToken), nil
	default:
		return nil, fmt.Errorf("маркетплейс %s не поддерживается", account.Marketplace)
	}
}

// YandexClient - клиент Yandex Market Partner API
type YandexClient struct {
	baseURL    string
	campaignID string
	token      string
	client     *http.Client
}

// NewYandexClient создаёт клиент Яндекс.Маркета
func NewYandexClient(campaignID, token string) *YandexClient {
	return &YandexClient{
		baseURL:    "https://api.partner.market.yandex.ru",
		campaignID: campaignID,
		token:      token,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// statsResponse - ответ на запрос статистики кампании
type statsResponse struct {
	Result struct {
		MainStats []struct {
			Orders  int     `json:"orders"`
			Revenue float64 `json:"revenue"` // в валюте кампании (UZS)
			Date    string  `json:"date"`
		} `json:"mainStats"`
	} `json:"result"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// GetMonthlySales возвращает итоги продаж кабинета за календарный месяц
func (c *YandexClient) GetMonthlySales(ctx context.Context, year int, month time.Month) (*MonthlySales, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	url := fmt.Sprintf("%s/campaigns/%s/stats/main?fromDate=%s&toDate=%s",
		c.baseURL, c.campaignID, from.Format("02-01-2006"), to.Format("02-01-2006"))

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Api-Key", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к Яндекс.Маркет: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ошибка API Яндекс.Маркет (статус %d): %s", resp.StatusCode, string(body))
	}

	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	if len(stats.Errors) > 0 {
		return nil, fmt.Errorf("ошибка API Яндекс.Маркет: %s (%s)", stats.Errors[0].Message, stats.Errors[0].Code)
	}

	sales := &MonthlySales{}
	for _, day := range stats.Result.MainStats {
		sales.TotalSalesUzs += int64(day.Revenue)
		sales.TotalOrders += day.Orders
	}

	return sales, nil
}
