package api

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/verval/verval-cli/api"

type instruments struct {
	requests         metric.Int64Counter
	refreshCalls     metric.Int64Counter
	refreshCoalesced metric.Int64Counter
	refreshFailures  metric.Int64Counter
	authFailures     metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(meterName)

	var (
		in  instruments
		err error
	)
	if in.requests, err = meter.Int64Counter(
		"verval.http.requests",
		metric.WithDescription("HTTP exchanges completed, by method and status"),
	); err != nil {
		return nil, err
	}
	if in.refreshCalls, err = meter.Int64Counter(
		"verval.auth.refresh.calls",
		metric.WithDescription("Network calls made to the refresh endpoint"),
	); err != nil {
		return nil, err
	}
	if in.refreshCoalesced, err = meter.Int64Counter(
		"verval.auth.refresh.coalesced",
		metric.WithDescription("Callers that waited on a refresh already in flight"),
	); err != nil {
		return nil, err
	}
	if in.refreshFailures, err = meter.Int64Counter(
		"verval.auth.refresh.failures",
		metric.WithDescription("Refresh outcomes delivered as failures, per caller"),
	); err != nil {
		return nil, err
	}
	if in.authFailures, err = meter.Int64Counter(
		"verval.auth.failures",
		metric.WithDescription("Requests that ended in a cleared session"),
	); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *instruments) request(ctx context.Context, method string, status int) {
	in.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.status_code", strconv.Itoa(status)),
	))
}

func (in *instruments) refreshFailed(ctx context.Context, coalesced bool) {
	in.refreshFailures.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coalesced", coalesced)))
}
