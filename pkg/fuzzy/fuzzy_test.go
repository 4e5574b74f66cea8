package fuzzy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/haivivi/tagmatch/pkg/catalog"
)

func testCatalog(t *testing.T, records ...catalog.Record) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	if err := b.Add(catalog.Source{Name: "test", Records: records}); err != nil {
		t.Fatal(err)
	}
	c, _, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"abc", "abc", 100},
		{"abc", "xyz", 0},
		{"abcd", "abce", 75},
		{"scholo_uniform", "school_uniform", 200.0 * 13 / 28},
		{"猫耳", "猫耳朵", 80},
	}
	for _, tt := range tests {
		got := Ratio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSortRatio(t *testing.T) {
	if got := TokenSortRatio("uniform school", "School Uniform"); got != 100 {
		t.Errorf("TokenSortRatio = %v, want 100", got)
	}
}

func TestLCSUpperBound(t *testing.T) {
	pairs := [][2]string{
		{"school_uniform", "scholo_uniform"},
		{"long_hair", "short_hair"},
		{"abc", "xyz"},
		{"猫耳", "猫耳朵"},
		{"aaaa", "a"},
	}
	for _, p := range pairs {
		q, k := p[0], p[1]
		var qbits []uint
		for _, r := range q {
			qbits = append(qbits, runeBit(r))
		}
		la, lb := len([]rune(q)), len([]rune(k))
		ub := lcsUpperBound(qbits, signature(q), la, signature(k), lb)
		exact := int(math.Round(Ratio(q, k) * float64(la+lb) / 200))
		if ub < exact {
			t.Errorf("bound(%q, %q) = %d < LCS %d", q, k, ub, exact)
		}
	}
}

func TestMatchTypo(t *testing.T) {
	cat := testCatalog(t,
		catalog.Record{Name: "school_uniform", Popularity: 1000},
		catalog.Record{Name: "serafuku", Popularity: 500},
		catalog.Record{Name: "uniform", Popularity: 800},
	)
	m := NewMatcher(cat)
	got, err := m.Match(context.Background(), "scholo uniform", Options{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) == 0 || got[0].Name != "school_uniform" {
		t.Fatalf("Match = %+v, want school_uniform first", got)
	}
	if got[0].Score < 80 {
		t.Errorf("Score = %v, want >= 80", got[0].Score)
	}
}

func TestMatchWordOrder(t *testing.T) {
	cat := testCatalog(t, catalog.Record{Name: "school_uniform", Popularity: 1})
	got, err := NewMatcher(cat).Match(context.Background(), "uniform school", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Score != 100 {
		t.Errorf("Match = %+v, want one perfect hit", got)
	}
}

func TestMatchViaAlias(t *testing.T) {
	cat := testCatalog(t, catalog.Record{
		Name: "cat_ears", Popularity: 10, Aliases: []string{"nekomimi"},
	})
	got, err := NewMatcher(cat).Match(context.Background(), "nekomimii", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "cat_ears" || got[0].Key != "nekomimi" {
		t.Errorf("Match = %+v", got)
	}
}

func TestMatchOnePerEntry(t *testing.T) {
	cat := testCatalog(t, catalog.Record{
		Name: "long_hair", Popularity: 10, Aliases: []string{"long_hairs", "longhair"},
	})
	got, err := NewMatcher(cat).Match(context.Background(), "long hair", Options{Threshold: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Match = %+v, want one result", got)
	}
	if got[0].Key != "long_hair" || got[0].Score != 100 {
		t.Errorf("best key = %+v", got[0])
	}
}

func TestMatchOrderingAndLimit(t *testing.T) {
	var recs []catalog.Record
	for i := range 10 {
		recs = append(recs, catalog.Record{Name: fmt.Sprintf("tag%d", i), Popularity: int64(i % 3)})
	}
	cat := testCatalog(t, recs...)
	got, err := NewMatcher(cat).Match(context.Background(), "tagx", Options{Threshold: 70, Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	// All score 75: popularity desc, then name asc.
	want := []string{"tag2", "tag5", "tag8", "tag1"}
	for i, w := range want {
		if got[i].Name != w {
			t.Errorf("got[%d] = %s, want %s (%+v)", i, got[i].Name, w, got)
		}
	}
}

func TestMatchThreshold(t *testing.T) {
	cat := testCatalog(t, catalog.Record{Name: "completely_different", Popularity: 1})
	got, err := NewMatcher(cat).Match(context.Background(), "abc", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Match = %+v, want none", got)
	}
	got, _ = NewMatcher(cat).Match(context.Background(), "", Options{})
	if got != nil {
		t.Errorf("empty query = %+v", got)
	}
}

func TestMatchWorkersAgree(t *testing.T) {
	var recs []catalog.Record
	for i := range 5000 {
		recs = append(recs, catalog.Record{Name: fmt.Sprintf("label_%04d", i), Popularity: int64(i)})
	}
	m := NewMatcher(testCatalog(t, recs...))
	one, err := m.Match(context.Background(), "label_123", Options{Workers: 1, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	many, err := m.Match(context.Background(), "label_123", Options{Workers: 8, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != len(many) {
		t.Fatalf("len %d vs %d", len(one), len(many))
	}
	for i := range one {
		if one[i] != many[i] {
			t.Errorf("[%d] %+v vs %+v", i, one[i], many[i])
		}
	}
}

func TestMatchCancelled(t *testing.T) {
	cat := testCatalog(t, catalog.Record{Name: "school_uniform", Popularity: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMatcher(cat).Match(ctx, "school uniform", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
