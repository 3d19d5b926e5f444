// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cipher

// KeySize is the length of the rolling XOR key.
const KeySize = 16

// Key is the rolling XOR key used by the container cipher.
type Key [KeySize]byte

// NextKey derives the key for the next 16-byte block. prev is the plaintext
// byte the schedule is driven by; its low three bits select one of eight
// fixed update rules. Assignments inside a rule are applied in order, so a
// later assignment observes the bytes written before it.
func NextKey(key Key, prev byte) Key {
	k := key
	switch prev & 7 {
	case 0:
		k[0] = k[0] + prev
		k[3] = k[3] + prev + 2
		k[4] = k[2] + prev + 11
		k[8] = k[6] + 7
	case 1:
		k[2] = k[9] + k[10]
		k[6] = k[7] + k[15]
		k[8] = k[8] + k[1]
		k[15] = k[5] + k[3]
	case 2:
		k[1] = k[1] + k[2]
		k[5] = k[5] + k[6]
		k[7] = k[7] + k[8]
		k[10] = k[10] + k[11]
	case 3:
		k[9] = k[2] + k[1]
		k[11] = k[6] + k[5]
		k[12] = k[8] + k[7]
		k[13] = k[11] + k[10]
	case 4:
		k[0] = k[1] + 111
		k[3] = k[4] + 71
		k[4] = k[5] + 17
		k[14] = k[15] + 64
	case 5:
		k[2] = k[2] + k[10]
		k[4] = k[5] + k[12]
		k[6] = k[8] + k[14]
		k[8] = k[11] + k[0]
	case 6:
		k[9] = k[11] + k[1]
		k[11] = k[13] + k[3]
		k[13] = k[15] + k[5]
		k[15] = k[9] + k[7]
		k[1] = k[9] + k[5]
		k[2] = k[10] + k[6]
		k[3] = k[11] + k[7]
		k[4] = k[12] + k[8]
	case 7:
		k[1] = k[9] + k[5]
		k[2] = k[10] + k[6]
		k[3] = k[11] + k[7]
		k[4] = k[12] + k[8]
	}
	return k
}

