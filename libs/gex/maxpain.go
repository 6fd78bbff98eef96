package gex

// findMaxPain evaluates pain(K) for every candidate strike K already present
// in the chain and returns the K that minimizes it:
//
//	pain(K) = sum_j (max(0, K-Kj)*call_oi_j + max(0, Kj-K)*put_oi_j) * 100
//
// strikes with no open interest on either side of them are degenerate ties
// (pain is flat across the whole gap); ties resolve toward the higher strike,
// since strikes is ascending and <= keeps overwriting bestStrike through the
// run of equal minimums.
func findMaxPain(profiles map[float64]*StrikeGammaProfile, strikes []float64) float64 {
	if len(strikes) == 0 {
		return 0
	}

	bestStrike := strikes[0]
	bestPain := pain(bestStrike, profiles, strikes)

	for _, k := range strikes[1:] {
		p := pain(k, profiles, strikes)
		if p <= bestPain {
			bestPain = p
			bestStrike = k
		}
	}
	return bestStrike
}

func pain(k float64, profiles map[float64]*StrikeGammaProfile, strikes []float64) float64 {
	total := 0.0
	for _, kj := range strikes {
		p := profiles[kj]
		if k > kj {
			total += (k - kj) * float64(p.CallOI) * contractMultiplier
		}
		if kj > k {
			total += (kj - k) * float64(p.PutOI) * contractMultiplier
		}
	}
	return total
}
