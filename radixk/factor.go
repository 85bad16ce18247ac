package radixk

import "math"

// factorK factors worldSize into a sequence of round factors, each as
// close to magicK as the search rules below allow:
//
//  1. If magicK divides the remaining count, use magicK.
//  2. Otherwise search outward from magicK, by pivotSeq, within [2, 2*magicK)
//     for a divisor.
//  3. Otherwise scan 2*magicK..floor(sqrt(remaining)) for the smallest
//     divisor.
//  4. Otherwise the remaining count is a large prime; use it as the final
//     (and only remaining) factor.
//
// factorK is a pure function of (worldSize, magicK): same inputs, same
// factor sequence, every time.
func factorK(worldSize, magicK int) ([]int, error) {
	if worldSize < 1 {
		return nil, ErrSanityCheck
	}
	maxRounds := 0
	if worldSize > 1 {
		maxRounds = int(math.Floor(math.Log2(float64(worldSize)))) + 1
	}

	var ks []int
	remaining := worldSize
	for remaining > 1 {
		k := -1

		if remaining%magicK == 0 {
			k = magicK
		}

		if k == -1 {
			for _, try := range pivotSeq(2, magicK, 2*magicK) {
				if remaining%try == 0 {
					k = try
					break
				}
			}
		}

		if k == -1 {
			maxTry := int(math.Floor(math.Sqrt(float64(remaining))))
			for try := 2 * magicK; try <= maxTry; try++ {
				if remaining%try == 0 {
					k = try
					break
				}
			}
		}

		if k == -1 {
			k = remaining
		}

		ks = append(ks, k)
		remaining /= k

		if len(ks) > maxRounds {
			return nil, ErrSanityCheck
		}
	}

	product := 1
	for _, k := range ks {
		product *= k
	}
	if product != worldSize {
		return nil, ErrSanityCheck
	}
	return ks, nil
}
