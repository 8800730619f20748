package finance

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verval/verval-cli/api"
)

func TestListTransactions(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.reply("GET /api/lancamentos", http.StatusOK,
		`{"items":[{"id":"1","tipo":"Entrada","nome":"Venda","valor":150.5,"funcionarioId":null,"data":"2024-03-01T00:00:00Z"}]}`)

	txs, err := svc.ListTransactions(context.Background(), TransactionFilter{UserID: "u-9", Kind: KindIncome})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, KindIncome, txs[0].Kind)
	require.Equal(t, 150.5, txs[0].Amount)
	require.Nil(t, txs[0].EmployeeID)

	require.Equal(t, map[string]string{"usuarioId": "u-9", "tipo": "Entrada"}, fake.last(t).Query)
}

func TestListTransactionsNoFilter(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.reply("GET /api/lancamentos", http.StatusOK, `null`)

	txs, err := svc.ListTransactions(context.Background(), TransactionFilter{})
	require.NoError(t, err)
	require.Empty(t, txs)
	require.NotNil(t, txs)
	require.Empty(t, fake.last(t).Query)
}

func TestCreateTransactionNeverSendsProfit(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.reply("POST /api/lancamentos", http.StatusCreated,
		`{"id":"t1","usuarioId":"u-1","tipo":"Saida","nome":"Aluguel","valor":1200,"lucro":-1200,"data":"2024-03-05T00:00:00Z","recorrencia":{"tipo":"Parcelado","parcelas":3}}`)

	in := TransactionInput{
		Kind:       KindExpense,
		Name:       "Aluguel",
		Amount:     ptr(1200.0),
		Cost:       ptr(0.0),
		Recurrence: InstallmentRecurrence(3),
	}
	in.SetDate(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	tx, err := svc.CreateTransaction(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "t1", tx.ID)
	require.Equal(t, -1200.0, *tx.Profit)

	body := fake.last(t).Body
	require.NotContains(t, body, "lucro")
	require.Equal(t, "u-1", body["usuarioId"])
	require.Equal(t, "Saida", body["tipo"])
	require.Equal(t, "2024-03-05T00:00:00Z", body["data"])
	require.Equal(t, map[string]any{"tipo": "Parcelado", "parcelas": float64(3)}, body["recorrencia"])
}

func TestCreateTransactionValidation(t *testing.T) {
	svc, fake, sess := newService(t)

	tests := []struct {
		name string
		in   TransactionInput
	}{
		{"no type", TransactionInput{Name: "x", Amount: ptr(1.0)}},
		{"no name", TransactionInput{Kind: KindIncome, Amount: ptr(1.0)}},
		{"no amount", TransactionInput{Kind: KindIncome, Name: "x"}},
		{"installments without count", TransactionInput{Kind: KindIncome, Name: "x", Amount: ptr(1.0), Recurrence: InstallmentRecurrence(0)}},
		{"fixed monthly without end", TransactionInput{Kind: KindIncome, Name: "x", Amount: ptr(1.0), Recurrence: &Recurrence{Kind: RecurrenceMonthlyEnd}}},
		{"unknown recurrence", TransactionInput{Kind: KindIncome, Name: "x", Amount: ptr(1.0), Recurrence: &Recurrence{Kind: "Semanal"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(context.Background(), tt.in)
			require.Error(t, err)
		})
	}

	sess.Clear()
	_, err := svc.CreateTransaction(context.Background(), TransactionInput{Kind: KindIncome, Name: "x", Amount: ptr(1.0)})
	require.ErrorIs(t, err, ErrNoUser)

	require.Empty(t, fake.recorded())
}

func TestUpdateAndPatchTransaction(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.reply("PUT /api/lancamentos/t 1", http.StatusOK, `{"id":"t 1","nome":"Novo"}`)
	fake.reply("PATCH /api/lancamentos/t 1", http.StatusOK, `{"id":"t 1","nome":"Novo"}`)

	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	tx, err := svc.UpdateTransaction(context.Background(), "t 1", TransactionInput{Name: "Novo", Recurrence: MonthlyUntil(end)})
	require.NoError(t, err)
	require.Equal(t, "Novo", tx.Name)
	put := fake.last(t)
	require.Equal(t, http.MethodPut, put.Method)
	require.Equal(t, map[string]any{"tipo": "MensalFixa", "fim": "2024-12-31T00:00:00Z"}, put.Body["recorrencia"])

	_, err = svc.PatchTransaction(context.Background(), "t 1", TransactionInput{Amount: ptr(10.0)})
	require.NoError(t, err)
	patch := fake.last(t)
	require.Equal(t, http.MethodPatch, patch.Method)
	require.Equal(t, map[string]any{"valor": 10.0}, patch.Body)
}

func TestDeleteTransaction(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.reply("DELETE /api/lancamentos/t1", http.StatusNoContent, ``)

	require.NoError(t, svc.DeleteTransaction(context.Background(), "t1"))
	require.Equal(t, http.MethodDelete, fake.last(t).Method)
}

func TestGetTransactionNotFound(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.GetTransaction(context.Background(), "missing")
	require.Equal(t, http.StatusNotFound, api.StatusOf(err))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("income")
	require.NoError(t, err)
	require.Equal(t, KindIncome, k)

	k, err = ParseKind("Saida")
	require.NoError(t, err)
	require.Equal(t, KindExpense, k)

	_, err = ParseKind("transfer")
	require.Error(t, err)
}
