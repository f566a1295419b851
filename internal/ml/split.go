package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets so that
// every stratum keeps (up to rounding) the same proportion in both. The
// result depends only on strata, testFrac and seed.
func StratifiedSplit(strata []int, testFrac float64, seed int64) (train, test []int, err error) {
	if len(strata) == 0 {
		return nil, nil, fmt.Errorf("cannot split empty data")
	}
	if testFrac <= 0 || testFrac >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %f", testFrac)
	}

	groups := make(map[int][]int)
	for i, s := range strata {
		groups[s] = append(groups[s], i)
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	rng := rand.New(rand.NewSource(seed))
	for _, k := range keys {
		idx := groups[k]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testFrac))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split of %d rows at %.2f leaves an empty partition", len(strata), testFrac)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}
