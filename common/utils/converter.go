package utils

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	prt "github.com/abcfe/voterkey/protocol"
)

// Has0xPrefix reports whether str starts with 0x or 0X
func Has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

// Strip0x removes a leading 0x prefix if present
func Strip0x(str string) string {
	if Has0xPrefix(str) {
		return str[2:]
	}
	return str
}

// BytesTo0xHex encodes bytes as lower-case hex with a 0x prefix
func BytesTo0xHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexToBytes decodes hex with or without the 0x prefix
func HexToBytes(str string) ([]byte, error) {
	bytes, err := hex.DecodeString(Strip0x(str))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return bytes, nil
}

// EqualHex compares two hex strings ignoring the 0x prefix and letter case
func EqualHex(a, b string) bool {
	return strings.EqualFold(Strip0x(a), Strip0x(b))
}

// AddressToString Address 타입을 0x 접두사가 붙은 16진수 문자열로 변환
func AddressToString(address prt.Address) string {
	return BytesTo0xHex(address[:])
}

// StringToAddress 16진수 문자열을 Address 타입으로 변환
func StringToAddress(str string) (prt.Address, error) {
	bytes, err := HexToBytes(str)
	if err != nil {
		return prt.Address{}, err
	}
	if len(bytes) != len(prt.Address{}) {
		return prt.Address{}, fmt.Errorf("invalid address length: %d (need 20 bytes)", len(bytes))
	}

	var address prt.Address
	copy(address[:], bytes)
	return address, nil
}

// PublicKeyToString PublicKey 타입을 0x 접두사가 붙은 16진수 문자열로 변환
func PublicKeyToString(pub prt.PublicKey) string {
	return BytesTo0xHex(pub[:])
}

// StringToPublicKey accepts 64-byte X||Y or 65-byte 0x04||X||Y hex
func StringToPublicKey(str string) (prt.PublicKey, error) {
	bytes, err := HexToBytes(str)
	if err != nil {
		return prt.PublicKey{}, err
	}
	switch {
	case len(bytes) == 65 && bytes[0] == 0x04:
		bytes = bytes[1:]
	case len(bytes) == 64:
	default:
		return prt.PublicKey{}, fmt.Errorf("invalid public key length: %d (need 64 bytes)", len(bytes))
	}

	var pub prt.PublicKey
	copy(pub[:], bytes)
	return pub, nil
}

// SignatureToString Signature 타입을 16진수 문자열로 변환
func SignatureToString(sig prt.Signature) string {
	return BytesTo0xHex(sig[:])
}

// StringToSignature 16진수 문자열을 Signature 타입으로 변환
func StringToSignature(str string) (prt.Signature, error) {
	bytes, err := HexToBytes(str)
	if err != nil {
		return prt.Signature{}, err
	}
	if len(bytes) != len(prt.Signature{}) {
		return prt.Signature{}, fmt.Errorf("invalid signature length: %d (need 65 bytes)", len(bytes))
	}

	var sig prt.Signature
	copy(sig[:], bytes)
	return sig, nil
}

// EncodeBase64 standard base64 with padding
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 standard base64 with padding
func DecodeBase64(str string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(str)
}

// Int64ToString int64 값을 문자열로 변환
func Int64ToString(value int64) string {
	return strconv.FormatInt(value, 10)
}

// StringToInt64 문자열을 int64 값으로 변환
func StringToInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
