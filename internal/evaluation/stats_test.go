package evaluation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func TestPtukeyTwoMeansMatchesStudentT(t *testing.T) {
	// With two means the studentized range is sqrt(2)*|t|.
	for _, df := range []float64{5, 12, 40} {
		for _, tv := range []float64{0.5, 1.5, 2.5} {
			dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
			want := 1 - 2*dist.Survival(tv)
			got := ptukey(tv*math.Sqrt2, 1, 2, df)
			if !approxEqual(got, want, 1e-5) {
				t.Fatalf("ptukey(df=%v, t=%v) = %f, want %f", df, tv, got, want)
			}
		}
	}
}

func TestPtukeyLargeDFTwoMeansMatchesNormal(t *testing.T) {
	q := 2.772
	want := 2*distuv.UnitNormal.CDF(q/math.Sqrt2) - 1
	got := ptukey(q, 1, 2, 1e6)
	if !approxEqual(got, want, 1e-6) {
		t.Fatalf("ptukey(inf df) = %f, want %f", got, want)
	}
}

func TestPtukeyTableCriticalValue(t *testing.T) {
	// q(0.05; k=3, df=12) = 3.773
	got := ptukey(3.773, 1, 3, 12)
	if !approxEqual(got, 0.95, 1e-3) {
		t.Fatalf("expected ~0.95, got %f", got)
	}
}

func TestPtukeyBounds(t *testing.T) {
	if got := ptukey(0, 1, 3, 10); got != 0 {
		t.Fatalf("expected 0 at q=0, got %f", got)
	}
	if got := ptukey(math.Inf(1), 1, 3, 10); got != 1 {
		t.Fatalf("expected 1 at q=inf, got %f", got)
	}
	if got := ptukey(1, 1, 3, 1); !math.IsNaN(got) {
		t.Fatalf("expected NaN for df<2, got %f", got)
	}
}

func TestTukeyHSDSeparatesDistinctGroups(t *testing.T) {
	groups := [][]float64{
		{0.9, 0.95, 0.92, 0.91, 0.94, 0.93},
		{0.1, 0.12, 0.11, 0.09, 0.13, 0.1},
		{0.9, 0.94, 0.92, 0.92, 0.93, 0.94},
	}
	p := tukeyHSD(groups)
	if p[0][1] >= 0.01 || p[1][0] != p[0][1] {
		t.Fatalf("expected significant symmetric difference, got %f/%f", p[0][1], p[1][0])
	}
	if p[0][2] < 0.5 {
		t.Fatalf("expected near-identical groups to be insignificant, got %f", p[0][2])
	}
}

func TestTukeyHSDIdenticalConstantGroups(t *testing.T) {
	p := tukeyHSD([][]float64{{1, 1, 1}, {1, 1, 1}})
	if p[0][1] != 1 {
		t.Fatalf("expected p=1 for identical groups, got %f", p[0][1])
	}
}

func TestPairedStudentP(t *testing.T) {
	a := []float64{0.8, 0.9, 0.85, 0.95, 0.9}
	b := []float64{0.2, 0.25, 0.3, 0.2, 0.35}
	if p := pairedStudentP(a, b); p >= 0.001 {
		t.Fatalf("expected small p-value, got %f", p)
	}
	if p := pairedStudentP(a, a); p != 1 {
		t.Fatalf("expected p=1 for identical vectors, got %f", p)
	}
	if p := pairedStudentP([]float64{1}, []float64{0}); p != 1 {
		t.Fatalf("expected p=1 for a single pair, got %f", p)
	}
}
