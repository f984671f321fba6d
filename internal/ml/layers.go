package ml

import (
	"fmt"
	"math"
)

// tensor is the value flowing between layers: either a sequence of vectors
// (with an optional mask) or a single vector.
type tensor struct {
	seq  [][]float64
	mask []bool
	vec  []float64
}

func (t tensor) isSeq() bool { return t.seq != nil }

type layer interface {
	kind() string
	forward(in tensor) (tensor, error)
}

type activationFunc func(float64) float64

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func hardSigmoid(x float64) float64 {
	return math.Max(0, math.Min(1, 0.2*x+0.5))
}

func relu(x float64) float64 {
	return math.Max(0, x)
}

func linear(x float64) float64 { return x }

func activationByName(name string) (activationFunc, error) {
	switch name {
	case "sigmoid":
		return sigmoid, nil
	case "hard_sigmoid":
		return hardSigmoid, nil
	case "tanh":
		return math.Tanh, nil
	case "relu":
		return relu, nil
	case "linear", "":
		return linear, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

type embeddingLayer struct {
	weights  [][]float64
	maskZero bool
}

func (l *embeddingLayer) kind() string { return LayerEmbedding }

func (l *embeddingLayer) forward(in tensor) (tensor, error) {
	if in.vec == nil {
		return tensor{}, fmt.Errorf("embedding expects token ids")
	}
	out := tensor{seq: make([][]float64, len(in.vec))}
	if l.maskZero {
		out.mask = make([]bool, len(in.vec))
	}
	for t, v := range in.vec {
		id := int(v)
		if id < 0 || id >= len(l.weights) {
			return tensor{}, fmt.Errorf("token index %d outside embedding range [0, %d)", id, len(l.weights))
		}
		out.seq[t] = l.weights[id]
		if l.maskZero {
			out.mask[t] = id != 0
		}
	}
	return out, nil
}

// lstmLayer follows the Keras weight layout: kernel (in, 4u), recurrent
// kernel (u, 4u), bias (4u), gates ordered input, forget, cell, output.
type lstmLayer struct {
	units           int
	kernel          [][]float64
	recurrentKernel [][]float64
	bias            []float64
	activation      activationFunc
	recurrentAct    activationFunc
	returnSequences bool
}

func (l *lstmLayer) kind() string { return LayerLSTM }

func (l *lstmLayer) forward(in tensor) (tensor, error) {
	if !in.isSeq() {
		return tensor{}, fmt.Errorf("lstm expects a sequence input")
	}

	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	var outputs [][]float64
	if l.returnSequences {
		outputs = make([][]float64, len(in.seq))
	}

	for t, x := range in.seq {
		if in.mask != nil && !in.mask[t] {
			if outputs != nil {
				outputs[t] = append([]float64(nil), h...)
			}
			continue
		}

		copy(z, l.bias)
		for i, xi := range x {
			if xi == 0 {
				continue
			}
			row := l.kernel[i]
			for j := range z {
				z[j] += xi * row[j]
			}
		}
		for i, hi := range h {
			if hi == 0 {
				continue
			}
			row := l.recurrentKernel[i]
			for j := range z {
				z[j] += hi * row[j]
			}
		}

		for k := 0; k < u; k++ {
			ig := l.recurrentAct(z[k])
			fg := l.recurrentAct(z[u+k])
			cg := l.activation(z[2*u+k])
			og := l.recurrentAct(z[3*u+k])
			c[k] = fg*c[k] + ig*cg
			h[k] = og * l.activation(c[k])
		}

		if outputs != nil {
			outputs[t] = append([]float64(nil), h...)
		}
	}

	if l.returnSequences {
		return tensor{seq: outputs, mask: in.mask}, nil
	}
	return tensor{vec: h}, nil
}

type denseLayer struct {
	kernel     [][]float64
	bias       []float64
	activation activationFunc
}

func (l *denseLayer) kind() string { return LayerDense }

func (l *denseLayer) forward(in tensor) (tensor, error) {
	if in.isSeq() {
		return tensor{}, fmt.Errorf("dense expects a vector input")
	}
	out := make([]float64, len(l.bias))
	copy(out, l.bias)
	for i, xi := range in.vec {
		row := l.kernel[i]
		for j := range out {
			out[j] += xi * row[j]
		}
	}
	for j := range out {
		out[j] = l.activation(out[j])
	}
	return tensor{vec: out}, nil
}

type dropoutLayer struct{}

func (dropoutLayer) kind() string { return LayerDropout }

func (dropoutLayer) forward(in tensor) (tensor, error) { return in, nil }

// poolingLayer collapses a sequence over time, skipping masked steps.
type poolingLayer struct {
	max bool
}

func (l *poolingLayer) kind() string {
	if l.max {
		return LayerGlobalMaxPool
	}
	return LayerGlobalAvgPool
}

func (l *poolingLayer) forward(in tensor) (tensor, error) {
	if !in.isSeq() {
		return tensor{}, fmt.Errorf("%s expects a sequence input", l.kind())
	}
	if len(in.seq) == 0 {
		return tensor{}, fmt.Errorf("%s got an empty sequence", l.kind())
	}

	dim := len(in.seq[0])
	out := make([]float64, dim)
	if l.max {
		for j := range out {
			out[j] = math.Inf(-1)
		}
	}

	n := 0
	for t, x := range in.seq {
		if in.mask != nil && !in.mask[t] {
			continue
		}
		n++
		for j, v := range x {
			if l.max {
				out[j] = math.Max(out[j], v)
			} else {
				out[j] += v
			}
		}
	}

	if n == 0 {
		// fully masked input pools to zeros
		return tensor{vec: make([]float64, dim)}, nil
	}
	if !l.max {
		for j := range out {
			out[j] /= float64(n)
		}
	}
	return tensor{vec: out}, nil
}
