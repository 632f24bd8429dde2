package evaluation

import (
	"errors"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

type GoodnessFunction[Input, Output any] func(input Input, output Output, err error) float64

type Options[Input, Output any] struct {
	GoodnessFunction GoodnessFunction[Input, Output]
	Repetitions      int
}

type Tester[Input, Output any] interface {
	Test(test Input) (Output, error)
}

type Evaluator[Input, Output any] struct {
	options *Options[Input, Output]
	tester  Tester[Input, Output]
}

func NewEvaluator[Input, Output any](tester Tester[Input, Output], options *Options[Input, Output]) *Evaluator[Input, Output] {
	return &Evaluator[Input, Output]{
		options: options,
		tester:  tester,
	}
}

// Evaluate runs the test pack Repetitions times concurrently and returns the
// mean goodness of every test.
func (e *Evaluator[Input, Output]) Evaluate(testPack []Input) ([]float64, error) {
	if e.options == nil || e.options.GoodnessFunction == nil {
		return nil, errors.New("evaluator needs a goodness function")
	}
	repetitions := max(e.options.Repetitions, 1)

	reports := make([][]float64, repetitions)
	var g errgroup.Group
	for i := 0; i < repetitions; i++ {
		i := i
		g.Go(func() error {
			reports[i] = e.evaluate(testPack)
			return nil
		})
	}
	_ = g.Wait()

	report := make([]float64, len(testPack))
	for i := range testPack {
		sum := 0.0
		for _, r := range reports {
			sum += r[i]
		}
		report[i] = sum / float64(repetitions)
	}
	return report, nil
}

func (e *Evaluator[Input, Output]) evaluate(testPack []Input) []float64 {
	report := make([]float64, len(testPack))
	for i, response := range e.test(testPack) {
		res, resErr := response.Get()
		report[i] = e.options.GoodnessFunction(testPack[i], res, resErr)
	}
	return report
}

func (e *Evaluator[Input, Output]) test(testPack []Input) []mo.Result[Output] {
	responses := make([]mo.Result[Output], len(testPack))
	for i, test := range testPack {
		response, err := e.tester.Test(test)
		if err != nil {
			responses[i] = mo.Err[Output](err)
		} else {
			responses[i] = mo.Ok(response)
		}
	}
	return responses
}

// Mean averages a report.
func Mean(report []float64) float64 {
	if len(report) == 0 {
		return 0
	}
	return lo.Sum(report) / float64(len(report))
}
