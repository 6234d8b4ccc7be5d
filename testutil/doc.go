// Package testutil provides deterministic fixtures for tests and benchmarks.
//
//	rng := testutil.NewRNG(42)
//	content := rng.Bytes(100)     // random payload
//	name := rng.Name("file", 8)   // "file-" plus 8 lowercase letters
//	sizes := rng.Sizes(10, 4096)  // ten sizes in [0, 4096)
//
// Every call on an RNG is serialized, so one RNG may be shared by parallel
// subtests. Reset replays the sequence from the seed.
package testutil
