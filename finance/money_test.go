package finance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoneyFormat(t *testing.T) {
	br := NewMoney("pt-BR")
	require.Equal(t, "BRL", br.Currency())
	require.Equal(t, "R$ 1.234,50", br.Format(1234.5))
	require.Equal(t, "-R$ 0,99", br.Format(-0.99))

	us := NewMoney("en-US")
	require.Equal(t, "USD", us.Currency())
	require.Equal(t, "$1,234.50", us.Format(1234.5))
}

func TestMoneyBadLocale(t *testing.T) {
	m := NewMoney("not a locale!")
	require.Equal(t, "BRL", m.Currency())
}

func TestShort(t *testing.T) {
	require.Equal(t, "999", Short(999))
	require.Equal(t, "1.5K", Short(1500))
	require.Equal(t, "2.3M", Short(2_300_000))
	require.Equal(t, "1.0B", Short(1_000_000_000))
	require.Equal(t, "-1.5K", Short(-1500))
}
