package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// 4-byte selectors for the optimistic oracle and ERC-20 calls this
// client issues. Keccak-256 of the canonical signatures.
const (
	selGetRequest   = "0xa9904f9b" // getRequest(address,bytes32,uint256,bytes)
	selGetState     = "0xba4b930c" // getState(address,bytes32,uint256,bytes)
	selProposePrice = "0xb8b4f908" // proposePrice(address,bytes32,uint256,bytes,int256)
	selDisputePrice = "0xfba7f1e3" // disputePrice(address,bytes32,uint256,bytes)

	selBalanceOf = "0x70a08231" // balanceOf(address)
	selAllowance = "0xdd62ed3e" // allowance(address,address)
	selApprove   = "0x095ea7b3" // approve(address,uint256)
	selDecimals  = "0x313ce567" // decimals()
	selSymbol    = "0x95d89b41" // symbol()
	selName      = "0x06fdde03" // name()
)

// topic0 hashes for the oracle lifecycle events.
const (
	topicRequestPrice = "0xf1679315ff325c257a944e0ca1bfe7b26616039e9511f9610d4ba3eca851027b"
	topicProposePrice = "0x6e51dd00371aabffa82cd401592f76ed51e98a9ea4b58751c70463a2c78b5ca1"
	topicDisputePrice = "0x5165909c3d1c01c5d1e121ac6f6d01dda1ba24bc9e1f975b5a375339c15be7f3"
	topicSettle       = "0x3f384afb4bd9f0aef0298c80399950011420eb33b0e1a750b20966270247b9a0"
)

const wordSize = 32

var maxWord = new(big.Int).Lsh(big.NewInt(1), 256)

// keccakHex hashes data with legacy Keccak-256 and returns 0x-hex.
func keccakHex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// arg is one ABI call argument: either a pre-encoded static word or a
// dynamic byte blob placed in the tail.
type arg struct {
	word    [wordSize]byte
	dyn     []byte
	dynamic bool
}

func argAddress(addr string) (arg, error) {
	raw, err := decodeHex(addr)
	if err != nil || len(raw) != 20 {
		return arg{}, fmt.Errorf("invalid address %q", addr)
	}
	var a arg
	copy(a.word[wordSize-20:], raw)
	return a, nil
}

// argIdentifier right-pads an ASCII identifier into a bytes32 word, the
// convention the oracle uses for price identifiers.
func argIdentifier(id string) (arg, error) {
	if len(id) == 0 || len(id) > wordSize {
		return arg{}, fmt.Errorf("identifier %q does not fit bytes32", id)
	}
	var a arg
	copy(a.word[:], id)
	return a, nil
}

func argUint64(n int64) arg {
	return argBig(big.NewInt(n))
}

// argBig encodes an integer word; negative values use two's complement.
func argBig(n *big.Int) arg {
	v := n
	if v.Sign() < 0 {
		v = new(big.Int).Add(maxWord, v)
	}
	var a arg
	v.FillBytes(a.word[:])
	return a
}

func argBytes(b []byte) arg {
	return arg{dyn: b, dynamic: true}
}

// encodeCall lays out selector + head words + dynamic tail per the ABI
// static/dynamic split.
func encodeCall(selector string, args ...arg) string {
	headSize := len(args) * wordSize
	head := make([]byte, 0, headSize)
	var tail []byte

	for _, a := range args {
		if !a.dynamic {
			head = append(head, a.word[:]...)
			continue
		}
		offset := argBig(big.NewInt(int64(headSize + len(tail))))
		head = append(head, offset.word[:]...)
		length := argBig(big.NewInt(int64(len(a.dyn))))
		tail = append(tail, length.word[:]...)
		tail = append(tail, a.dyn...)
		if pad := len(a.dyn) % wordSize; pad != 0 {
			tail = append(tail, make([]byte, wordSize-pad)...)
		}
	}

	return selector + hex.EncodeToString(head) + hex.EncodeToString(tail)
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// wordReader walks the 32-byte words of ABI return data or event data.
type wordReader struct {
	data []byte
	pos  int
}

func newWordReader(hexData string) (*wordReader, error) {
	raw, err := decodeHex(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode return data: %w", err)
	}
	return &wordReader{data: raw}, nil
}

func (r *wordReader) word() ([]byte, error) {
	if r.pos+wordSize > len(r.data) {
		return nil, fmt.Errorf("return data truncated at word %d", r.pos/wordSize)
	}
	w := r.data[r.pos : r.pos+wordSize]
	r.pos += wordSize
	return w, nil
}

func (r *wordReader) address() (string, error) {
	w, err := r.word()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w[wordSize-20:]), nil
}

func (r *wordReader) bigUint() (*big.Int, error) {
	w, err := r.word()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// bigInt decodes a two's-complement int256 word.
func (r *wordReader) bigInt() (*big.Int, error) {
	w, err := r.word()
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(w)
	if w[0]&0x80 != 0 {
		n.Sub(n, maxWord)
	}
	return n, nil
}

func (r *wordReader) boolean() (bool, error) {
	n, err := r.bigUint()
	if err != nil {
		return false, err
	}
	return n.Sign() != 0, nil
}

func (r *wordReader) int64() (int64, error) {
	n, err := r.bigUint()
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("word overflows int64: %s", n)
	}
	return n.Int64(), nil
}

// bytesAt reads a dynamic bytes value whose head word held offset.
func (r *wordReader) bytesAt(offset int64) ([]byte, error) {
	if offset < 0 || offset+wordSize > int64(len(r.data)) {
		return nil, fmt.Errorf("dynamic offset %d out of range", offset)
	}
	length := new(big.Int).SetBytes(r.data[offset : offset+wordSize])
	if !length.IsInt64() {
		return nil, fmt.Errorf("dynamic length overflows int64")
	}
	start := offset + wordSize
	end := start + length.Int64()
	if end > int64(len(r.data)) {
		return nil, fmt.Errorf("dynamic bytes truncated")
	}
	return r.data[start:end], nil
}

// decodeStringResult handles both ABI shapes token contracts use for
// symbol()/name(): a dynamic string, or a legacy fixed bytes32.
func decodeStringResult(hexData string) (string, error) {
	raw, err := decodeHex(hexData)
	if err != nil {
		return "", fmt.Errorf("decode string result: %w", err)
	}
	if len(raw) == wordSize {
		return string(trimRightZeros(raw)), nil
	}
	r := &wordReader{data: raw}
	offset, err := r.int64()
	if err != nil {
		return "", err
	}
	b, err := r.bytesAt(offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeIdentifier turns a bytes32 identifier word back into its ASCII
// form.
func decodeIdentifier(w []byte) string {
	return string(trimRightZeros(w))
}

func trimRightZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

func topicAddress(topic string) string {
	cleaned := strings.TrimPrefix(topic, "0x")
	if len(cleaned) < 40 {
		return ""
	}
	return strings.ToLower("0x" + cleaned[len(cleaned)-40:])
}

var zeroAddress = "0x" + strings.Repeat("0", 40)

// normalizeAddress lowercases and maps the zero address to empty.
func normalizeAddress(addr string) string {
	lower := strings.ToLower(addr)
	if lower == zeroAddress {
		return ""
	}
	return lower
}
