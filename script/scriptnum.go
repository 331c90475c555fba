package script

import "fmt"

// Num represents a numeric value used in scripts: little-endian,
// sign-magnitude, minimally encoded. CSV/CLTV operands and every arithmetic
// opcode operate on this representation.
type Num int64

const (
	// maxNumLen is the default maximum number of bytes an interpreted
	// script number may occupy. CLTV/CSV extend this to 5.
	maxNumLen = 4
)

// Bytes returns the minimal little-endian sign-magnitude serialization.
func (n Num) Bytes() []byte {
	if n == 0 {
		return nil
	}

	isNegative := n < 0
	if isNegative {
		n = -n
	}

	result := make([]byte, 0, 9)
	for n > 0 {
		result = append(result, byte(n&0xff))
		n >>= 8
	}

	// A set high bit of the most significant byte would read back as the
	// sign, so an extra byte disambiguates.
	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if isNegative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int32 clamps the value into the int32 range, matching the consensus
// behavior for numeric opcode results fed into further operations.
func (n Num) Int32() int32 {
	if n > 0x7fffffff {
		return 0x7fffffff
	}
	if n < -0x7fffffff {
		return -0x7fffffff
	}
	return int32(n)
}

// MakeNum interprets serialized bytes as a script number of at most
// numLen bytes, enforcing minimal encoding when requireMinimal is set.
func MakeNum(v []byte, requireMinimal bool, numLen int) (Num, error) {
	if len(v) > numLen {
		return 0, fmt.Errorf("%w: number is %d bytes, max %d",
			ErrMalformedScript, len(v), numLen)
	}

	if requireMinimal {
		if err := checkMinimalNum(v); err != nil {
			return 0, err
		}
	}

	if len(v) == 0 {
		return 0, nil
	}

	var result int64
	for i, b := range v {
		result |= int64(b) << uint(8*i)
	}

	// The most significant bit carries the sign.
	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint(8*(len(v)-1)))
		return Num(-result), nil
	}
	return Num(result), nil
}

// checkMinimalNum rejects zero-padded encodings.
func checkMinimalNum(v []byte) error {
	if len(v) == 0 {
		return nil
	}
	if v[len(v)-1]&0x7f == 0 {
		if len(v) == 1 || v[len(v)-2]&0x80 == 0 {
			return fmt.Errorf("%w: %x", ErrMinimalData, v)
		}
	}
	return nil
}
