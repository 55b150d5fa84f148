package statement

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/user/marketplace-billing-api/internal/models"
)

// Generator - генератор PDF-выписок по биллингу
type Generator struct{}

// NewGenerator создаёт новый генератор
func NewGenerator() *Generator {
	return &Generator{}
}

// russianMonthForPeriod возвращает название месяца (именительный падеж)
func russianMonthForPeriod(m time.Month) string {
	months := map[time.Month]string{
		time.January:   "Январь",
		time.February:  "Февраль",
		time.March:     "Март",
		time.April:     "Апрель",
		time.May:       "Май",
		time.June:      "Июнь",
		time.July:      "Июль",
		time.August:    "Август",
		time.September: "Сентябрь",
		time.October:   "Октябрь",
		time.November:  "Ноябрь",
		time.December:  "Декабрь",
	}
	return months[m]
}

// marketplaceTitle возвращает человекочитаемое название маркетплейса
func marketplaceTitle(marketplace string) string {
	switch marketplace {
	case models.MarketplaceYandex:
		return "Яндекс.Маркет"
	case models.MarketplaceUzum:
		return "Uzum Market"
	case models.MarketplaceWildberries:
		return "Wildberries"
	default:
		return marketplace
	}
}

// formatUzs форматирует сумму с разделителями тысяч
func formatUzs(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	if amount < 0 {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, c)
	}
	if amount < 0 {
		return "-" + string(out)
	}
	return string(out)
}

// GenerateMonthlyStatement генерирует PDF-выписку партнёра за месяц:
// продажи по каждому маркетплейсу, начисления и итоговый долг
func (g *Generator) GenerateMonthlyStatement(partner *models.Partner, month int, rows []models.MonthlySalesTracking) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Шрифты с поддержкой кириллицы
	pdf.AddUTF8Font("Arial", "", "./fonts/Arial.ttf")
	pdf.AddUTF8Font("Arial", "B", "./fonts/Arial Bold.ttf")

	year := month / 100
	monthOfYear := time.Month(month % 100)

	// Заголовок
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 8, fmt.Sprintf("Выписка по биллингу за %s %d", russianMonthForPeriod(monthOfYear), year), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Партнёр
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 5, fmt.Sprintf("Партнёр: %s", partner.Name), "", 1, "L", false, 0, "")
	if partner.ContactEmail != "" {
		pdf.CellFormat(190, 5, fmt.Sprintf("Email: %s", partner.ContactEmail), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(190, 5, fmt.Sprintf("Тариф: %s, доля с оборота %.1f%%", partner.TariffType, partner.RevenueSharePercent*100), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Таблица начислений
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(50, 7, "Маркетплейс", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 7, "Заказы", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Продажи, UZS", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Доля, UZS", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Абонплата, UZS", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	var totalDebt int64
	for _, row := range rows {
		pdf.CellFormat(50, 7, marketplaceTitle(row.Marketplace), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", row.TotalOrders), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatUzs(row.TotalSalesUzs), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatUzs(row.RevenueShareUzs), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatUzs(row.MonthlyFeeUzs), "1", 1, "R", false, 0, "")
		if !row.IsPaid {
			totalDebt += row.TotalDebtUzs
		}
	}
	pdf.Ln(4)

	// Итого
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Итого к оплате: %s UZS", formatUzs(totalDebt)), "", 1, "R", false, 0, "")

	// Сумма прописью
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(190, 5, AmountToWords(totalDebt), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
