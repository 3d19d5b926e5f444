// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package cipher implements the rolling-key XOR stream cipher that protects
// FEW engine script containers.
//
// A container is a 4-byte magic, the 16-byte seed key stored in the clear,
// then the ciphertext. Every payload byte is XORed with key[i%16]; after the
// last byte of each 16-byte block the key is advanced with NextKey, driven
// by a plaintext byte so that encryption and decryption evolve the key
// identically.
package cipher

import (
	"bytes"

	"github.com/dotandev/fewdat/internal/errors"
)

// HeaderSize is the magic plus the seed key.
const HeaderSize = 4 + KeySize

// Magic is the fixed container prefix.
var Magic = []byte{0x00, 0x00, 0x00, 0x01}

// IsContainer reports whether data starts with a well-formed container header.
func IsContainer(data []byte) bool {
	return len(data) >= HeaderSize && bytes.Equal(data[:4], Magic)
}

// SeedKey returns the key stored in the container header.
func SeedKey(container []byte) (Key, error) {
	var key Key
	if err := validate(container); err != nil {
		return key, err
	}
	copy(key[:], container[4:HeaderSize])
	return key, nil
}

func validate(container []byte) error {
	if len(container) < HeaderSize {
		return errors.WrapMalformedContainer("container shorter than 20-byte header")
	}
	if !bytes.Equal(container[:4], Magic) {
		return errors.WrapMalformedContainer("bad magic, want 00 00 00 01")
	}
	return nil
}

// Decrypt strips the header and returns the plaintext payload.
func Decrypt(container []byte) ([]byte, error) {
	key, err := SeedKey(container)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(container)-HeaderSize)
	copy(plain, container[HeaderSize:])
	xorStream(plain, plain, key)
	return plain, nil
}

// Encrypt builds a container around payload using an all-zero seed key.
func Encrypt(payload []byte) []byte {
	return EncryptWithKey(payload, Key{})
}

// EncryptWithKey builds a container around payload seeded with key.
func EncryptWithKey(payload []byte, key Key) []byte {
	out := make([]byte, HeaderSize+len(payload))
	copy(out, Magic)
	copy(out[4:HeaderSize], key[:])

	body := out[HeaderSize:]
	for i := range payload {
		body[i] = payload[i] ^ key[i%KeySize]
		if i%KeySize == KeySize-1 {
			key = NextKey(key, payload[i-1])
		}
	}
	return out
}

// xorStream decrypts src into dst. dst may alias src: the schedule reads
// plaintext bytes that have already been produced.
func xorStream(dst, src []byte, key Key) {
	for i := range src {
		dst[i] = src[i] ^ key[i%KeySize]
		if i%KeySize == KeySize-1 {
			key = NextKey(key, dst[i-1])
		}
	}
}
