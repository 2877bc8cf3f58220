package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/letterpress/internal/model"
)

func TestPipeline_RunsStepsInOrder(t *testing.T) {
	var order []string
	step := func(name string) Step {
		return NewStep(name, func(_ context.Context, _ *StepContext) error {
			order = append(order, name)
			return nil
		})
	}

	p := NewPipeline(step("a"), step("b"), step("c"))
	require.NoError(t, p.Run(context.Background(), &StepContext{RunID: "r1"}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, p.Steps())
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	boom := model.E(model.KindSchema, "metrics", "missing columns: OpenRate")
	ran := map[string]bool{}

	p := NewPipeline(
		NewStep("first", func(context.Context, *StepContext) error { ran["first"] = true; return nil }),
		NewStep("second", func(context.Context, *StepContext) error { ran["second"] = true; return boom }),
		NewStep("third", func(context.Context, *StepContext) error { ran["third"] = true; return nil }),
	)

	err := p.Run(context.Background(), &StepContext{})
	require.Error(t, err)
	assert.True(t, ran["first"])
	assert.True(t, ran["second"])
	assert.False(t, ran["third"])

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "second", se.StepName())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.KindSchema, model.KindOf(err))
	assert.Equal(t, "second: "+boom.Error(), err.Error())
}
