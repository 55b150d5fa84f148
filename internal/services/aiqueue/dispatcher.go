package aiqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/services/ai"
)

// Dispatcher - Executor поверх AI сервиса.
// Разбирает input_data задачи в типизированную структуру по виду задачи
// и возвращает JSON результата.
type Dispatcher struct {
	ai *ai.Service
}

// NewDispatcher создаёт новый диспетчер задач
func NewDispatcher(aiService *ai.Service) *Dispatcher {
	return &Dispatcher{ai: aiService}
}

// Execute выполняет задачу в зависимости от её типа
func (d *Dispatcher) Execute(ctx context.Context, task *models.AITask) (string, error) {
	switch task.TaskType {
	case models.TaskTypeReviewResponse:
		var in ai.ReviewResponseInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.GenerateReviewResponse(ctx, &in))

	case models.TaskTypeProductCard:
		var in ai.ProductCardInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.CreateProductCard(ctx, &in))

	case models.TaskTypeCardImprovement:
		var in ai.CardImprovementInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.ImproveCard(ctx, &in))

	case models.TaskTypeSEOOptimization:
		var in ai.SEOInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.OptimizeSEO(ctx, &in))

	case models.TaskTypeCompetitorAnalysis:
		var in ai.CompetitorAnalysisInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.AnalyzeCompetitor(ctx, &in))

	case models.TaskTypeAdCampaign:
		var in ai.AdCampaignInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.CreateAdCampaign(ctx, &in))

	case models.TaskTypeDescription:
		var in ai.DescriptionInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.GenerateDescription(ctx, &in))

	case models.TaskTypePriceAnalysis:
		var in ai.PriceAnalysisInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.AnalyzePricing(ctx, &in))

	case models.TaskTypeReport:
		var in ai.ReportInput
		if err := parseInput(task.InputData, &in); err != nil {
			return "", err
		}
		return marshalResult(d.ai.GenerateReport(ctx, &in))

	default:
		return "", fmt.Errorf("неизвестный тип задачи: %s", task.TaskType)
	}
}

// parseInput разбирает input_data задачи
func parseInput(inputData string, target interface{}) error {
	if err := json.Unmarshal([]byte(inputData), target); err != nil {
		return fmt.Errorf("невалидные входные данные: %w", err)
	}
	return nil
}

// marshalResult сериализует результат выполнения в JSON
func marshalResult(result interface{}, err error) (string, error) {
	if err != nil {
		return "", err
	}
	data, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return "", fmt.Errorf("ошибка сериализации результата: %w", marshalErr)
	}
	return string(data), nil
}
