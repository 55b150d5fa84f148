package statement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountToWords(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "Ноль сум"},
		{1, "Один сум"},
		{2, "Два сум"},
		{11, "Одиннадцать сум"},
		{21, "Двадцать один сум"},
		{100, "Сто сум"},
		{1000, "Одна тысяча сум"},
		{2000, "Две тысячи сум"},
		{5000, "Пять тысяч сум"},
		{12600, "Двенадцать тысяч шестьсот сум"},
		{1000000, "Один миллион сум"},
		{2000000, "Два миллиона сум"},
		{6287400, "Шесть миллионов двести восемьдесят семь тысяч четыреста сум"},
		{8287400, "Восемь миллионов двести восемьдесят семь тысяч четыреста сум"},
		{1000000000, "Один миллиард сум"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, AmountToWords(tc.amount), "amount=%d", tc.amount)
	}
}

func TestFormatUzs(t *testing.T) {
	require.Equal(t, "0", formatUzs(0))
	require.Equal(t, "999", formatUzs(999))
	require.Equal(t, "1 000", formatUzs(1000))
	require.Equal(t, "8 287 400", formatUzs(8_287_400))
	require.Equal(t, "-50 000", formatUzs(-50_000))
}
