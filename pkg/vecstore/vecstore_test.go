package vecstore

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamps", []float32{1, 0}, []float32{-1, 0}, 0},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0},
		{"mismatch", []float32{1}, []float32{1, 0}, 0},
		{"diagonal", []float32{1, 0}, []float32{1, 1}, float32(1 / math.Sqrt2)},
	}
	for _, tt := range tests {
		got := Cosine(tt.a, tt.b)
		if math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("%s: Cosine = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFlatSearch(t *testing.T) {
	f := NewFlat(4)
	_ = f.Add("a", []float32{1, 0, 0, 0})
	_ = f.Add("b", []float32{0, 1, 0, 0})
	_ = f.Add("c", []float32{0.9, 0.1, 0, 0})

	matches, err := f.Search(context.Background(), []float32{1, 0, 0, 0}, 5, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].ID != "a" || matches[1].ID != "c" {
		t.Errorf("matches = %+v, want a, c", matches)
	}
	if f.Len() != 3 || f.Dim() != 4 {
		t.Errorf("Len/Dim = %d/%d", f.Len(), f.Dim())
	}
}

func TestFlatLimitAndErrors(t *testing.T) {
	f := NewFlat(2)
	for _, id := range []string{"c", "a", "b"} {
		if err := f.Add(id, []float32{1, 0}); err != nil {
			t.Fatal(err)
		}
	}
	matches, _ := f.Search(context.Background(), []float32{1, 0}, 2, 0)
	if len(matches) != 2 || matches[0].ID != "a" || matches[1].ID != "b" {
		t.Errorf("matches = %+v, want a, b", matches)
	}
	if err := f.Add("a", []float32{0, 1}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := f.Search(context.Background(), []float32{1, 0, 0}, 1, 0); !errors.Is(err, ErrDimension) {
		t.Errorf("dimension err = %v", err)
	}
}

func TestFlatSaveLoad(t *testing.T) {
	f := NewFlat(3)
	_ = f.Add("x", []float32{1, 0, 0})
	_ = f.Add("y", []float32{0, 1, 0})

	var buf bytes.Buffer
	if err := f.Save(&buf); err != nil {
		t.Fatal(err)
	}
	idx, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := idx.(*Flat); !ok {
		t.Fatalf("Load returned %T, want *Flat", idx)
	}
	matches, _ := idx.Search(context.Background(), []float32{0, 2, 0}, 1, 0)
	if len(matches) != 1 || matches[0].ID != "y" {
		t.Errorf("matches = %+v", matches)
	}
}
