// Package sharded provides string-keyed concurrent sets and maps that spread
// their keys over independently locked shards, so copy workers touching
// different paths rarely contend on the same mutex.
package sharded

import "hash/fnv"

// DefaultShards is the shard count used by callers without a better guess.
const DefaultShards = 64

// getShardIndex calculates the shard index for a given key.
// numShards must be a power of 2 for the bitwise AND to act as a modulus.
func getShardIndex(key string, numShards int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() & uint32(numShards-1))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
