package block

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// EncodingVersion identifies the canonical encoding below. Any change to the
// byte layout changes every block hash and must bump this value.
//
// Version 1 is byte-compatible with Python's json.dumps(obj, sort_keys=True):
//
//	{"index": I, "previous_hash": S, "proof": P, "timestamp": F, "transactions": [T, ...]}
//	T = {"amount": A, "recipient": S, "sender": S}
//
// Separators are ", " and ": ". Strings are ASCII-only with \uXXXX escapes.
// F follows Python's float repr; A is the shortest decimal form of the amount.
// The genesis sentinel previous hash is the string "1" where Python used the
// integer 1, so only the genesis hash differs from Python's.
const EncodingVersion = 1

const hexDigits = "0123456789abcdef"

// Encode returns the canonical encoding of b.
func Encode(b Block) []byte {
	return AppendCanonical(make([]byte, 0, 128+96*len(b.Transactions)), b)
}

// AppendCanonical appends the canonical encoding of b to buf.
func AppendCanonical(buf []byte, b Block) []byte {
	buf = append(buf, `{"index": `...)
	buf = strconv.AppendUint(buf, b.Index, 10)
	buf = append(buf, `, "previous_hash": `...)
	buf = appendString(buf, b.PreviousHash)
	buf = append(buf, `, "proof": `...)
	buf = strconv.AppendUint(buf, b.Proof, 10)
	buf = append(buf, `, "timestamp": `...)
	buf = appendFloat(buf, b.Timestamp)
	buf = append(buf, `, "transactions": [`...)
	for i, t := range b.Transactions {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = appendTransaction(buf, t)
	}
	buf = append(buf, "]}"...)
	return buf
}

func appendTransaction(buf []byte, t tx.Transaction) []byte {
	buf = append(buf, `{"amount": `...)
	buf = append(buf, t.Amount.String()...)
	buf = append(buf, `, "recipient": `...)
	buf = appendString(buf, t.Recipient)
	buf = append(buf, `, "sender": `...)
	buf = appendString(buf, t.Sender)
	buf = append(buf, '}')
	return buf
}

// appendFloat writes f the way Python's repr does: shortest round-trip
// digits, fixed notation with a trailing ".0" for 1e-4 <= |f| < 1e16,
// exponent notation otherwise.
func appendFloat(buf []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(buf, "NaN"...)
	case math.IsInf(f, 1):
		return append(buf, "Infinity"...)
	case math.IsInf(f, -1):
		return append(buf, "-Infinity"...)
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.AppendFloat(buf, f, 'e', -1, 64)
	}

	start := len(buf)
	buf = strconv.AppendFloat(buf, f, 'f', -1, 64)
	for _, c := range buf[start:] {
		if c == '.' {
			return buf
		}
	}
	return append(buf, ".0"...)
}

// appendString writes s as a quoted ASCII-only JSON string.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, `\"`...)
		case '\\':
			buf = append(buf, `\\`...)
		case '\n':
			buf = append(buf, `\n`...)
		case '\r':
			buf = append(buf, `\r`...)
		case '\t':
			buf = append(buf, `\t`...)
		case '\b':
			buf = append(buf, `\b`...)
		case '\f':
			buf = append(buf, `\f`...)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf = append(buf, byte(r))
			case r > 0xFFFF:
				r -= 0x10000
				buf = appendUnicodeEscape(buf, 0xD800+(r>>10))
				buf = appendUnicodeEscape(buf, 0xDC00+(r&0x3FF))
			default:
				buf = appendUnicodeEscape(buf, r)
			}
		}
	}
	return append(buf, '"')
}

func appendUnicodeEscape(buf []byte, r rune) []byte {
	if r > 0xFFFF || r < 0 {
		r = utf8.RuneError
	}
	return append(buf, '\\', 'u',
		hexDigits[(r>>12)&0xF],
		hexDigits[(r>>8)&0xF],
		hexDigits[(r>>4)&0xF],
		hexDigits[r&0xF],
	)
}
