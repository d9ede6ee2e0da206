package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

type TokenID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
)

func NewTokenID() (TokenID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return TokenID{}, err
	}
	return TokenID(u), nil
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func ConstantTimeHashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func EncodeRefreshToken(tokenID string, secret [refreshSecretSize]byte) (string, error) {
	tid, err := ParseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:len(tid)], tid[:])
	copy(raw[len(tid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var tid TokenID
	copy(tid[:], raw[:len(tid)])
	copy(secret[:], raw[len(tid):])

	return tid.String(), secret, nil
}
