package candle

import (
	"math/rand"
	"reflect"
	"testing"
)

func times(series []Candle) []int64 {
	out := make([]int64, len(series))
	for i, c := range series {
		out[i] = c.OpenTime
	}
	return out
}

func TestMergeOrdersAndDeduplicates(t *testing.T) {
	existing := []Candle{
		{OpenTime: 100, Close: 10},
		{OpenTime: 200, Close: 11},
		{OpenTime: 300, Close: 9},
	}
	incoming := []Candle{
		{OpenTime: 300, Close: 9.5},
		{OpenTime: 400, Close: 12},
	}

	merged := Merge(existing, incoming)
	if got, want := times(merged), []int64{100, 200, 300, 400}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected open times: %v", got)
	}
	if merged[2].Close != 9.5 {
		t.Fatalf("expected duplicate openTime 300 to take incoming close 9.5, got %.2f", merged[2].Close)
	}
	if merged[3].Close != 12 {
		t.Fatalf("expected appended candle close 12, got %.2f", merged[3].Close)
	}
}

func TestMergeToleratesUnsortedDuplicatedInput(t *testing.T) {
	incoming := []Candle{
		{OpenTime: 300, Close: 1},
		{OpenTime: 100, Close: 2},
		{OpenTime: 300, Close: 3}, // later duplicate wins
		{OpenTime: 200, Close: 4},
	}
	merged := Merge(nil, incoming)
	if got, want := times(merged), []int64{100, 200, 300}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected open times: %v", got)
	}
	if merged[2].Close != 3 {
		t.Fatalf("expected last duplicate to win, got close %.0f", merged[2].Close)
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := []Candle{
		{OpenTime: 200, Close: 4},
		{OpenTime: 100, Close: 2},
	}
	once := Merge(nil, batch)
	twice := Merge(once, batch)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merging the same batch twice changed the series: %v vs %v", once, twice)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	var batch []Candle
	for i := int64(0); i < 50; i++ {
		batch = append(batch, Candle{OpenTime: i * 100, Close: float64(i)})
	}
	shuffled := append([]Candle(nil), batch...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	merged := Merge(nil, shuffled)
	if !reflect.DeepEqual(Merge(nil, batch), merged) {
		t.Fatalf("merge result depends on submission order")
	}

	for i := 1; i < len(merged); i++ {
		if merged[i].OpenTime <= merged[i-1].OpenTime {
			t.Fatalf("open times not strictly increasing at %d", i)
		}
	}
}
