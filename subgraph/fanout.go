package subgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rainlang.xyz/rainmeta/metaerr"
)

// DefaultTimeout bounds a single endpoint call when callers pass zero.
const DefaultTimeout = 5 * time.Second

// ErrNoRecord is returned by an endpoint call whose response was well formed
// but held no matching record.
var ErrNoRecord = metaerr.New(metaerr.KindNotFound, "SG-NOT-FOUND", "no matching record was found")

// EndpointError attributes a failure to the endpoint that produced it.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string { return fmt.Sprintf("%s: %v", e.Endpoint, e.Err) }

func (e *EndpointError) Unwrap() error { return e.Err }

type outcome[T any] struct {
	idx int
	val T
	err error
}

func fanOut[T any](ctx context.Context, endpoints []string, timeout time.Duration, fn func(context.Context, string) (T, error)) (<-chan outcome[T], context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan outcome[T], len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep string) {
			defer wg.Done()
			cctx, ccancel := context.WithTimeout(ctx, timeout)
			defer ccancel()
			v, err := fn(cctx, ep)
			if err != nil {
				err = &EndpointError{Endpoint: ep, Err: err}
			}
			out <- outcome[T]{idx: i, val: v, err: err}
		}(i, ep)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, cancel
}

func noEndpoints() error {
	return metaerr.New(metaerr.KindInvalidInput, "SG-ENDPOINTS", "expected subgraph URL(s)")
}

// failure classifies a set of endpoint errors: NotFound when every endpoint
// answered without a record, AggregateNetworkFailure otherwise.
func failure(errs []error) error {
	joined := errors.Join(errs...)
	for _, err := range errs {
		if !metaerr.IsKind(err, metaerr.KindNotFound) {
			return metaerr.Wrap(metaerr.KindAggregateNetworkFailure, "SG-AGGREGATE", "all subgraph endpoints failed", joined)
		}
	}
	return metaerr.Wrap(metaerr.KindNotFound, "SG-NOT-FOUND", "no matching record was found", joined)
}

// FirstSuccess calls fn against every endpoint concurrently and returns the
// first successful result. The remaining calls are cancelled once a winner is
// found. Each call is bounded by timeout.
func FirstSuccess[T any](ctx context.Context, endpoints []string, timeout time.Duration, fn func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	var zero T
	if len(endpoints) == 0 {
		return zero, noEndpoints()
	}
	results, cancel := fanOut(ctx, endpoints, timeout, fn)
	defer cancel()

	var errs []error
	for r := range results {
		if r.err == nil {
			return r.val, nil
		}
		errs = append(errs, r.err)
	}
	return zero, failure(errs)
}

// AllSettledMerge calls fn against every endpoint concurrently, waits for all
// of them and hands the successful results, in endpoint order, to reduce.
// With no successful result the error is NotFound wrapping every cause.
func AllSettledMerge[T, R any](ctx context.Context, endpoints []string, timeout time.Duration, fn func(ctx context.Context, endpoint string) (T, error), reduce func([]T) (R, error)) (R, error) {
	var zero R
	if len(endpoints) == 0 {
		return zero, noEndpoints()
	}
	results, cancel := fanOut(ctx, endpoints, timeout, fn)
	defer cancel()

	vals := make([]*T, len(endpoints))
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		v := r.val
		vals[r.idx] = &v
	}
	var ok []T
	for _, v := range vals {
		if v != nil {
			ok = append(ok, *v)
		}
	}
	if len(ok) == 0 {
		return zero, metaerr.Wrap(metaerr.KindNotFound, "SG-NOT-FOUND", "no valid result from any subgraph", errors.Join(errs...))
	}
	return reduce(ok)
}
