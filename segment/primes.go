package segment

// MaxConcurrencyPrime bounds the number of segments a ConcurrentEntriesMap
// may open with — the source's g_primeConcurTable tops out at a much
// smaller prime than the general capacity table (spec §3, §8): "Concurrency
// ... bounded by a predefined maximum prime". Past this point adding more
// segments buys negligible extra parallelism at real memory cost.
const MaxConcurrencyPrime = 499

// concurrencyPrimes is a short table of primes suitable as segment counts,
// standing in for the source's sampled g_primeConcurTable.
var concurrencyPrimes = generatePrimesUpTo(MaxConcurrencyPrime)

// maxCapacityPrime caps the value NextPrime starts searching from for
// per-segment hash-map capacities (the source samples primes up to roughly
// one million "as the map scales, little steps are usually uninteresting").
// There is no capacity table: NextPrime finds each prime by trial division,
// which is cheap and exact in this range.
const maxCapacityPrime = 1 << 20

func generatePrimesUpTo(n uint32) []uint32 {
	if n < 2 {
		return []uint32{2}
	}
	sieve := make([]bool, n+1)
	var primes []uint32
	for i := uint32(2); i <= n; i++ {
		if sieve[i] {
			continue
		}
		primes = append(primes, i)
		for j := i * i; j <= n && j >= i; j += i {
			sieve[j] = true
		}
	}
	return primes
}

// NextPrime returns the smallest prime >= val, used for per-segment hash
// map capacities (spec §4.2 "open(initialCapacity) reserves a hash-map of
// size = next prime >= initialCapacity").
func NextPrime(val uint32) uint32 {
	if val < 2 {
		return 2
	}
	if val > maxCapacityPrime {
		val = maxCapacityPrime
	}
	for n := val; ; n++ {
		if isPrime(n) {
			return n
		}
	}
}

// NextConcurrencyPrime returns the smallest prime in the bounded
// concurrency-level table that is >= val, clamped at MaxConcurrencyPrime
// (spec §4.1 "segmentFor ... Concurrency chosen ... as min(maxPrime,
// nextPrime(concurrency_hint))").
func NextConcurrencyPrime(val int) uint32 {
	if val < 1 {
		val = 1
	}
	for _, p := range concurrencyPrimes {
		if uint32(val) <= p {
			return p
		}
	}
	return MaxConcurrencyPrime
}

func isPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint32(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
