package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/errors"
)

// Builtins returns a registry preloaded with numeric demo stages:
//
//	square     n -> n*n
//	double     n -> 2n
//	inc        n -> n+1
//	negate     n -> -n
//	drop-even  suppresses even integers
//	explode    n -> lazy sequence 1..n
//	sum        suppresses every value, emits the running total on flush
//	first      passes the value as Final, skipping later stages
//
// Integers stay integers. JSON numbers decode as float64 and stay float64.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("square", arith(func(n int64) int64 { return n * n }, func(f float64) float64 { return f * f }))
	r.Register("double", arith(func(n int64) int64 { return 2 * n }, func(f float64) float64 { return 2 * f }))
	r.Register("inc", arith(func(n int64) int64 { return n + 1 }, func(f float64) float64 { return f + 1 }))
	r.Register("negate", arith(func(n int64) int64 { return -n }, func(f float64) float64 { return -f }))
	r.Register("drop-even", chain.Func(dropEven))
	r.Register("explode", chain.Func(explode))
	r.Register("first", chain.Func(func(_ context.Context, v any) (any, error) {
		return chain.Final(v), nil
	}))
	r.RegisterFactory("sum", func() any { return chain.Flushable(newSum()) })
	return r
}

type number struct {
	i     int64
	f     float64
	float bool
}

func toNumber(v any) (number, error) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n)}, nil
	case int32:
		return number{i: int64(n)}, nil
	case int64:
		return number{i: n}, nil
	case float32:
		return number{f: float64(n), float: true}, nil
	case float64:
		return number{f: n, float: true}, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{i: i}, nil
		}
		f, err := n.Float64()
		if err != nil {
			return number{}, errors.InvalidInput("value", "not a number: "+n.String())
		}
		return number{f: f, float: true}, nil
	}
	return number{}, errors.InvalidInput("value", "expected a number").WithDetail("type", fmt.Sprintf("%T", v))
}

func (n number) value() any {
	if n.float {
		return n.f
	}
	return int(n.i)
}

func (n number) isInt() (int64, bool) {
	if !n.float {
		return n.i, true
	}
	if n.f == math.Trunc(n.f) && !math.IsInf(n.f, 0) {
		return int64(n.f), true
	}
	return 0, false
}

func arith(fi func(int64) int64, ff func(float64) float64) chain.Func {
	return func(_ context.Context, v any) (any, error) {
		n, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		if n.float {
			n.f = ff(n.f)
		} else {
			n.i = fi(n.i)
		}
		return n.value(), nil
	}
}

func dropEven(_ context.Context, v any) (any, error) {
	n, err := toNumber(v)
	if err != nil {
		return nil, err
	}
	if i, ok := n.isInt(); ok && i%2 == 0 {
		return chain.None, nil
	}
	return v, nil
}

func explode(_ context.Context, v any) (any, error) {
	n, err := toNumber(v)
	if err != nil {
		return nil, err
	}
	count, ok := n.isInt()
	if !ok || count < 0 {
		return nil, errors.InvalidInput("value", "explode needs a non-negative integer")
	}
	seq := func(yield func(any) bool) {
		for i := int64(1); i <= count; i++ {
			next := number{i: i, f: float64(i), float: n.float}
			if !yield(next.value()) {
				return
			}
		}
	}
	return seq, nil
}

// newSum returns a stage that accumulates values and emits the total when
// flushed. A flush with nothing accumulated emits nothing.
func newSum() chain.Func {
	var (
		total number
		seen  bool
	)
	return func(_ context.Context, v any) (any, error) {
		if chain.IsNone(v) {
			if !seen {
				return chain.None, nil
			}
			out := total.value()
			total, seen = number{}, false
			return out, nil
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		seen = true
		if n.float && !total.float {
			total = number{f: float64(total.i), float: true}
		}
		if total.float {
			if !n.float {
				n.f = float64(n.i)
			}
			total.f += n.f
		} else {
			total.i += n.i
		}
		return chain.None, nil
	}
}
