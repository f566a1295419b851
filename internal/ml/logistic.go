package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2-regularised binary classifier. The intercept
// is not penalised.
type LogisticRegression struct {
	Coef       []float64 `json:"coef"`
	Intercept  float64   `json:"intercept"`
	C          float64   `json:"c"`
	Iterations int       `json:"iterations"`
}

// FitLogistic solves the penalised maximum-likelihood problem with Newton
// (IRLS) steps. c is the inverse regularisation strength.
func FitLogistic(x [][]float64, y []int, c float64, maxIter int) (*LogisticRegression, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("training data has %d rows and %d labels", len(x), len(y))
	}
	if c <= 0 {
		return nil, fmt.Errorf("C must be positive, got %f", c)
	}
	if maxIter <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", maxIter)
	}
	var pos int
	for _, v := range y {
		switch v {
		case 0:
		case 1:
			pos++
		default:
			return nil, fmt.Errorf("labels must be 0 or 1, got %d", v)
		}
	}
	if pos == 0 || pos == len(y) {
		return nil, fmt.Errorf("training labels contain a single class")
	}

	nf := len(x[0])
	p := nf + 1 // last weight is the intercept
	w := make([]float64, p)
	row := make([]float64, p)
	hess := make([]float64, p*p)
	grad := make([]float64, p)

	iter := 0
	for iter < maxIter {
		iter++
		for i := range hess {
			hess[i] = 0
		}
		for j := range grad {
			grad[j] = 0
		}

		for i, xi := range x {
			copy(row, xi)
			row[nf] = 1
			prob := sigmoid(floats.Dot(w, row))
			r := prob - float64(y[i])
			s := prob * (1 - prob)
			for a := 0; a < p; a++ {
				grad[a] += r * row[a]
				if row[a] == 0 {
					continue
				}
				for b := a; b < p; b++ {
					hess[a*p+b] += s * row[a] * row[b]
				}
			}
		}
		for a := 0; a < nf; a++ {
			grad[a] += w[a] / c
			hess[a*p+a] += 1 / c
		}
		hess[nf*p+nf] += 1e-10
		for a := 0; a < p; a++ {
			for b := 0; b < a; b++ {
				hess[a*p+b] = hess[b*p+a]
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(mat.NewSymDense(p, append([]float64(nil), hess...))); !ok {
			return nil, fmt.Errorf("hessian is not positive definite at iteration %d", iter)
		}
		var step mat.VecDense
		if err := chol.SolveVecTo(&step, mat.NewVecDense(p, append([]float64(nil), grad...))); err != nil {
			return nil, fmt.Errorf("solve newton step: %w", err)
		}

		// Halve the Newton step until the penalised loss stops increasing.
		before := logisticLoss(x, y, w, c)
		next := make([]float64, p)
		var maxStep float64
		for t := 1.0; t > 1e-6; t /= 2 {
			maxStep = 0
			for a := 0; a < p; a++ {
				d := t * step.AtVec(a)
				next[a] = w[a] - d
				maxStep = math.Max(maxStep, math.Abs(d))
			}
			if logisticLoss(x, y, next, c) <= before {
				break
			}
		}
		copy(w, next)
		if maxStep < 1e-8 {
			break
		}
	}

	return &LogisticRegression{
		Coef:       append([]float64(nil), w[:nf]...),
		Intercept:  w[nf],
		C:          c,
		Iterations: iter,
	}, nil
}

// PredictProba returns the probability of the positive class.
func (m *LogisticRegression) PredictProba(x []float64) float64 {
	return sigmoid(floats.Dot(m.Coef, x) + m.Intercept)
}

func (m *LogisticRegression) validate(width int) error {
	if len(m.Coef) != width {
		return fmt.Errorf("classifier expects %d features, transform yields %d", len(m.Coef), width)
	}
	return nil
}

func logisticLoss(x [][]float64, y []int, w []float64, c float64) float64 {
	nf := len(w) - 1
	var loss float64
	for i, xi := range x {
		z := floats.Dot(w[:nf], xi) + w[nf]
		// log(1+e^z) - y*z, evaluated without overflow
		if z > 0 {
			loss += z + math.Log1p(math.Exp(-z))
		} else {
			loss += math.Log1p(math.Exp(z))
		}
		loss -= float64(y[i]) * z
	}
	for _, v := range w[:nf] {
		loss += v * v / (2 * c)
	}
	return loss
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
