package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	var out DescriptionResult
	err := ExtractJSON(`{"description":"Отличный чайник"}`, &out)
	require.NoError(t, err)
	require.Equal(t, "Отличный чайник", out.Description)
}

func TestExtractJSONMarkdownFence(t *testing.T) {
	response := "Вот результат:\n```json\n{\"description\":\"Отличный чайник\"}\n```\nГотово."

	var out DescriptionResult
	err := ExtractJSON(response, &out)
	require.NoError(t, err)
	require.Equal(t, "Отличный чайник", out.Description)
}

func TestExtractJSONBareFence(t *testing.T) {
	response := "```\n{\"description\":\"Отличный чайник\"}\n```"

	var out DescriptionResult
	err := ExtractJSON(response, &out)
	require.NoError(t, err)
	require.Equal(t, "Отличный чайник", out.Description)
}

func TestExtractJSONEmbeddedInText(t *testing.T) {
	response := `Модель размышляла и решила: {"recommended_price_uzs": 150000, "margin_percent": 25.5, "rationale": "конкуренты дороже"} - такой вывод.`

	var out PriceAnalysisResult
	err := ExtractJSON(response, &out)
	require.NoError(t, err)
	require.Equal(t, int64(150000), out.RecommendedPriceUzs)
	require.InDelta(t, 25.5, out.MarginPercent, 0.001)
}

func TestExtractJSONEmpty(t *testing.T) {
	var out DescriptionResult
	require.Error(t, ExtractJSON("", &out))
}

func TestExtractJSONNoJSON(t *testing.T) {
	var out DescriptionResult
	require.Error(t, ExtractJSON("просто текст без данных", &out))
}
