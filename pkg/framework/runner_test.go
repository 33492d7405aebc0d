package framework_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	fx "github.com/robotalks/tws.go/pkg/framework"
)

func TestRunnerStopsAllOnExit(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)

	failure := errors.New("link closed")
	r := fx.NewRunner()
	r.Go(
		fx.NamedRun("kernel", fx.NewKernel()),
		fx.NamedRun("link", fx.RunFunc(func(context.Context) error { return failure })),
	)
	err := r.Wait()
	require.Error(t, err)
	agg, ok := err.(*fx.AggregatedError)
	require.True(t, ok)
	assert.Equal(t, []error{failure}, agg.Errors)
}

func TestRunnerStop(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)

	r := fx.NewRunner()
	r.Go(fx.NewKernel(), fx.NewKernel())
	r.Stop()
	assert.NoError(t, r.Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs fx.AggregatedError
	assert.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errors.New("a"), nil, errors.New("b"))
	assert.Equal(t, "Multiple errors:\na\nb", errs.Aggregate().Error())
}
