package protocol

import (
	"bytes"
	"math"
	"testing"
)

func TestEncodeDecodeUvarint(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		bytes int // expected encoded length
	}{
		{"zero", 0, 1},
		{"one", 1, 1},
		{"max_1byte", 127, 1},
		{"min_2byte", 128, 2},
		{"max_2byte", 16383, 2},
		{"min_3byte", 16384, 3},
		{"medium", 1000000, 3},
		{"large", 1 << 28, 5},
		{"max_uint32", math.MaxUint32, 5},
		{"max_uint64", math.MaxUint64, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, MaxVarintLen)
			n := EncodeUvarint(buf, tc.value)

			if n != tc.bytes {
				t.Errorf("EncodeUvarint(%d) = %d bytes, want %d", tc.value, n, tc.bytes)
			}

			decoded, read := DecodeUvarint(buf[:n])
			if read != n {
				t.Errorf("DecodeUvarint read %d bytes, want %d", read, n)
			}
			if decoded != tc.value {
				t.Errorf("DecodeUvarint = %d, want %d", decoded, tc.value)
			}

			appended := AppendUvarint(nil, tc.value)
			if string(appended) != string(buf[:n]) {
				t.Errorf("AppendUvarint(%d) = %x, want %x", tc.value, appended, buf[:n])
			}
		})
	}
}

func TestUvarintLen(t *testing.T) {
	tests := []struct {
		value    uint64
		expected int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{math.MaxUint32, 5},
		{math.MaxUint64, 10},
	}

	for _, tc := range tests {
		got := UvarintLen(tc.value)
		if got != tc.expected {
			t.Errorf("UvarintLen(%d) = %d, want %d", tc.value, got, tc.expected)
		}

		// Verify against actual encoding
		buf := make([]byte, MaxVarintLen)
		actual := EncodeUvarint(buf, tc.value)
		if got != actual {
			t.Errorf("UvarintLen(%d) = %d, but EncodeUvarint wrote %d bytes", tc.value, got, actual)
		}
	}
}

func TestDecodeUvarintErrors(t *testing.T) {
	// Empty buffer
	_, n := DecodeUvarint([]byte{})
	if n != -1 {
		t.Errorf("DecodeUvarint(empty) = %d, want -1", n)
	}

	// Incomplete varint (all continuation bits set)
	_, n = DecodeUvarint([]byte{0x80, 0x80, 0x80})
	if n != -1 {
		t.Errorf("DecodeUvarint(incomplete) = %d, want -1", n)
	}

	// Overflow (11 continuation bytes)
	overflow := make([]byte, 11)
	for i := range overflow {
		overflow[i] = 0x80
	}
	_, n = DecodeUvarint(overflow)
	if n != -2 {
		t.Errorf("DecodeUvarint(overflow) = %d, want -2", n)
	}

	// Ten continuation bytes can never terminate within MaxVarintLen.
	_, n = DecodeUvarint(overflow[:MaxVarintLen])
	if n != -2 {
		t.Errorf("DecodeUvarint(10 continuation bytes) = %d, want -2", n)
	}

	// A tenth byte above 1 does not fit in 64 bits.
	tooBig := append(bytes.Repeat([]byte{0x80}, MaxVarintLen-1), 0x02)
	_, n = DecodeUvarint(tooBig)
	if n != -2 {
		t.Errorf("DecodeUvarint(tenth byte 0x02) = %d, want -2", n)
	}

	// A tenth byte of 1 is the top bit of math.MaxUint64's range.
	top := append(bytes.Repeat([]byte{0x80}, MaxVarintLen-1), 0x01)
	v, n := DecodeUvarint(top)
	if n != MaxVarintLen || v != 1<<63 {
		t.Errorf("DecodeUvarint(tenth byte 0x01) = %d, %d; want %d, %d", v, n, uint64(1<<63), MaxVarintLen)
	}
}

func BenchmarkEncodeUvarint(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeUvarint(buf, uint64(i))
	}
}

func BenchmarkDecodeUvarint(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	EncodeUvarint(buf, 12345678)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecodeUvarint(buf)
	}
}
