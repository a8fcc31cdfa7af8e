package rectify

import "fmt"

// Fraction is an exact rational number used for all time arithmetic in the
// rectifier. Representing frame periods and media offsets as floating point
// causes drift at non-integer rates such as 30000/1001; Fraction never
// rounds until the caller explicitly asks for an integer tick count.
type Fraction struct {
	Num int64
	Den int64
}

// NewFraction builds a reduced Fraction. A zero denominator is normalized
// to 1 so callers can't accidentally construct Inf/NaN-shaped values; a
// negative denominator is made positive by negating both parts.
func NewFraction(num, den int64) Fraction {
	if den == 0 {
		den = 1
	}
	if den < 0 {
		num, den = -num, -den
	}
	return reduce(Fraction{Num: num, Den: den})
}

// IntFraction returns n/1.
func IntFraction(n int64) Fraction {
	return Fraction{Num: n, Den: 1}
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func reduce(f Fraction) Fraction {
	if f.Den == 0 {
		f.Den = 1
	}
	if f.Den < 0 {
		f.Num, f.Den = -f.Num, -f.Den
	}
	g := gcd(f.Num, f.Den)
	f.Num /= g
	f.Den /= g
	return f
}

// Add returns f + other, exactly.
func (f Fraction) Add(other Fraction) Fraction {
	return reduce(Fraction{
		Num: f.Num*other.Den + other.Num*f.Den,
		Den: f.Den * other.Den,
	})
}

// Sub returns f - other, exactly.
func (f Fraction) Sub(other Fraction) Fraction {
	return reduce(Fraction{
		Num: f.Num*other.Den - other.Num*f.Den,
		Den: f.Den * other.Den,
	})
}

// Mul returns f * other, exactly.
func (f Fraction) Mul(other Fraction) Fraction {
	return reduce(Fraction{
		Num: f.Num * other.Num,
		Den: f.Den * other.Den,
	})
}

// MulInt returns f * n, exactly.
func (f Fraction) MulInt(n int64) Fraction {
	return reduce(Fraction{Num: f.Num * n, Den: f.Den})
}

// Div returns f / other, exactly. Dividing by the zero fraction returns f
// unchanged; callers are expected not to construct a zero denominator Fraction.
func (f Fraction) Div(other Fraction) Fraction {
	if other.Num == 0 {
		return f
	}
	return reduce(Fraction{
		Num: f.Num * other.Den,
		Den: f.Den * other.Num,
	})
}

// Cmp returns -1, 0, or 1 comparing f to other.
func (f Fraction) Cmp(other Fraction) int {
	// f.Den and other.Den are always > 0 (see NewFraction/reduce).
	lhs := f.Num * other.Den
	rhs := other.Num * f.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func (f Fraction) Less(other Fraction) bool    { return f.Cmp(other) < 0 }
func (f Fraction) Equal(other Fraction) bool   { return f.Cmp(other) == 0 }
func (f Fraction) LessEq(other Fraction) bool  { return f.Cmp(other) <= 0 }
func (f Fraction) GreaterEq(other Fraction) bool { return f.Cmp(other) >= 0 }

// ToInt64 truncates toward zero. Used only where the spec calls for an
// explicit integer tick count (e.g. after multiplying by CLOCK_RATE).
func (f Fraction) ToInt64() int64 {
	if f.Den == 0 {
		return 0
	}
	return f.Num / f.Den
}

// RoundInt64 rounds to the nearest integer, ties away from zero. Used to
// convert k*framePeriod (kept exact as a Fraction until the last moment) to
// a Time in ticks without accumulating rounding drift across many ticks:
// each tick's Time is computed directly from k, never by repeatedly adding
// a pre-rounded period.
func (f Fraction) RoundInt64() int64 {
	if f.Den == 0 {
		return 0
	}
	num, den := f.Num, f.Den
	if den < 0 {
		num, den = -num, -den
	}
	if num >= 0 {
		return (2*num + den) / (2 * den)
	}
	return -((2*(-num) + den) / (2 * den))
}

// CeilToInt64 rounds up toward positive infinity.
func (f Fraction) CeilToInt64() int64 {
	if f.Den == 0 {
		return 0
	}
	q := f.Num / f.Den
	r := f.Num % f.Den
	if r != 0 && (r > 0) == (f.Den > 0) {
		q++
	}
	return q
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}
