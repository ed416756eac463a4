package analysis

import "testing"

func TestThresholdsLevel(t *testing.T) {
	th := Thresholds{Medium: 0.3, High: 0.5, Critical: 0.75}

	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0.0, LevelLow},
		{0.29, LevelLow},
		{0.3, LevelMedium},
		{0.49, LevelMedium},
		{0.5, LevelHigh},
		{0.74, LevelHigh},
		{0.75, LevelCritical},
		{1.0, LevelCritical},
	}
	for _, tc := range cases {
		if got := th.Level(tc.score); got != tc.want {
			t.Errorf("Level(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}

	// level never decreases as the score grows
	prev := LevelLow
	for s := 0.0; s <= 1.0; s += 0.01 {
		l := th.Level(s)
		if l.Rank() < prev.Rank() {
			t.Fatalf("level decreased at score %v: %v after %v", s, l, prev)
		}
		prev = l
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	a := Finding{Documents: []DocumentID{"d2", "d1"}}
	b := Finding{Documents: []DocumentID{"d1", "d2"}}
	if a.PairKey() != b.PairKey() {
		t.Errorf("pair key must not depend on document order: %q vs %q", a.PairKey(), b.PairKey())
	}
	if a.PairKey() != "d1|d2" {
		t.Errorf("unexpected pair key %q", a.PairKey())
	}
}

func TestPriorityIndexCoversAllKinds(t *testing.T) {
	seen := map[int]DetectorKind{}
	for _, k := range DetectorPriority {
		i := PriorityIndex(k)
		if other, dup := seen[i]; dup {
			t.Fatalf("kinds %v and %v share priority %d", other, k, i)
		}
		seen[i] = k
	}
	if PriorityIndex(DetectorKind("bogus")) != len(DetectorPriority) {
		t.Error("unknown kinds must sort after all known kinds")
	}
}
