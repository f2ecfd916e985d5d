package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(ethcommon.Bytes2Hex(b))
}

func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

// DecodeHex decodes a hex string with or without the 0x prefix. Unlike
// HexStrToByteSlice it reports malformed input.
func DecodeHex(hexStr string) ([]byte, error) {
	b, err := hexutil.Decode(Prepend0xPrefix(hexStr))
	if err != nil {
		return nil, fmt.Errorf("%w: hex %q: %v", ErrInvalidArgument, Shorten(hexStr, 8), err)
	}
	return b, nil
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}

// ParseAmount parses a non-negative base-10 integer such as "500000000000000000000".
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %q", ErrInvalidArgument, s)
	}
	return v, nil
}

// ParseAddress parses a hex encoded host-chain address.
func ParseAddress(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, fmt.Errorf("%w: address %q", ErrInvalidArgument, s)
	}
	return ethcommon.HexToAddress(s), nil
}

// Ether returns n * 10^18.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func BigIntClone(bigInt *big.Int) *big.Int {
	if bigInt == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(bigInt)
}

// BigMin returns the smaller of a and b.
func BigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return [32]byte{}
	}
	return b
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil
	}
	return b
}

func RandBigInt(byteNum int) *big.Int {
	return new(big.Int).SetBytes(RandBytes(byteNum))
}

func RandEthAddress() ethcommon.Address {
	return ethcommon.BytesToAddress(RandBytes(20))
}
