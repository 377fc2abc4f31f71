package sweep

import "hash/fnv"

// TrialSeed derives the rng seed for one trial from the sweep's base
// seed, the grid point's key, and the trial index. It is a pure function:
// any point of a sweep can be re-run in isolation and reproduce the exact
// trials the full sweep executed.
func TrialSeed(baseSeed int64, pointKey string, trial int) int64 {
	h := fnv.New64a()
	h.Write([]byte(pointKey))
	x := uint64(baseSeed) ^ h.Sum64()
	x ^= (uint64(trial) + 1) * 0x9e3779b97f4a7c15
	return int64(splitmix64(x))
}

// splitmix64 finalizer, used to decorrelate the structured inputs above.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
