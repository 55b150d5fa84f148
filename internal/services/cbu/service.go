package cbu

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
)

const (
	// API ЦБ Узбекистана (открытые данные)
	cbuAPIURL = "https://cbu.uz/ru/arkhiv-kursov-valyut/json/all/%s/"
)

// Service - сервис справочных курсов валют ЦБ РУз.
// Курсы используются только для отображения на дашборде:
// расчёты биллинга идут по фиксированному курсу из конфига.
type Service struct {
	repo   *repository.Repository
	client *http.Client
}

// NewService создаёт новый сервис курсов ЦБ
func NewService(repo *repository.Repository) *Service {
	return &Service{
		repo:   repo,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// cbuRate - курс валюты из API ЦБ РУз
type cbuRate struct {
	Ccy  string `json:"Ccy"`  // код валюты (USD, EUR, RUB)
	Rate string `json:"Rate"` // курс как строка
	Date string `json:"Date"`
}

// FetchExchangeRates получает текущие курсы валют из ЦБ РУз
func (s *Service) FetchExchangeRates() error {
	return s.FetchExchangeRatesForDate(time.Now())
}

// FetchExchangeRatesForDate получает курсы валют за конкретную дату
func (s *Service) FetchExchangeRatesForDate(date time.Time) error {
	url := fmt.Sprintf(cbuAPIURL, date.Format("2006-01-02"))

	resp, err := s.client.Get(url)
	if err != nil {
		return fmt.Errorf("ошибка запроса к ЦБ РУз: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var rates []cbuRate
	if err := json.Unmarshal(body, &rates); err != nil {
		log.Printf("[CBU] Ошибка парсинга ответа за %s: %v", date.Format("2006-01-02"), err)
		return nil
	}

	// Сохраняем нужные курсы (USD, EUR, RUB)
	saved := 0
	for _, item := range rates {
		if item.Ccy != "USD" && item.Ccy != "EUR" && item.Ccy != "RUB" {
			continue
		}

		rate, err := strconv.ParseFloat(item.Rate, 64)
		if err != nil {
			continue
		}

		exchangeRate := &models.ExchangeRate{
			CurrencyFrom: item.Ccy,
			CurrencyTo:   "UZS",
			Rate:         rate,
			RateDate:     date,
		}

		if err := s.repo.SaveExchangeRate(exchangeRate); err != nil {
			log.Printf("[CBU] Ошибка сохранения курса %s: %v", item.Ccy, err)
			continue
		}
		saved++
	}

	log.Printf("[CBU] Сохранено %d курсов за %s", saved, date.Format("2006-01-02"))
	return nil
}
