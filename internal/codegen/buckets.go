// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package codegen

import (
	"fmt"

	"github.com/dchest/siphash"

	"github.com/databass-project/databass/internal/evalexpr"
)

// bucketK0/bucketK1 are fixed siphash keys: this engine never persists
// a hash table across process runs, so there is no attacker-controlled
// input to defend against via key randomization, only the need for a
// stable, cheap bucket function, the same way plan/input.go's
// siphash.Hash(k0, k1, buf) keys Sneller's own split-input assignment.
const bucketK0, bucketK1 = 0x5bd1e995279b9839, 0x27d4eb2f1656667b

func bucketHash(v any) uint64 {
	return siphash.Hash(bucketK0, bucketK1, []byte(fmt.Sprint(v)))
}

// keyBucket groups every value hashing to the same bucketHash, and is
// the one place a hash collision across two distinct join keys (or two
// distinct rows in a Distinct's seen-set) is resolved by a real
// equality check via evalexpr.Compare rather than just trusting the
// hash.
type keyBucket[T any] struct {
	key   any
	items []T
}

func bucketFind[T any](buckets map[uint64][]*keyBucket[T], key any) *keyBucket[T] {
	for _, b := range buckets[bucketHash(key)] {
		if evalexpr.Compare(b.key, key) == 0 && fmt.Sprint(b.key) == fmt.Sprint(key) {
			return b
		}
	}
	return nil
}

func bucketInsert[T any](buckets map[uint64][]*keyBucket[T], key any, item T) {
	h := bucketHash(key)
	b := bucketFind(buckets, key)
	if b == nil {
		b = &keyBucket[T]{key: key}
		buckets[h] = append(buckets[h], b)
	}
	b.items = append(b.items, item)
}
