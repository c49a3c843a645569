package protocol

import (
	"bytes"
	"testing"
)

// === Varint Benchmarks ===

func BenchmarkVarint_EncodeSmall(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeUvarint(buf, 127)
	}
}

func BenchmarkVarint_EncodeLarge(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeUvarint(buf, 1<<28)
	}
}

func BenchmarkVarint_DecodeSmall(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	EncodeUvarint(buf, 127)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecodeUvarint(buf)
	}
}

func BenchmarkVarint_DecodeLarge(b *testing.B) {
	buf := make([]byte, MaxVarintLen)
	n := EncodeUvarint(buf, 1<<28)
	buf = buf[:n]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecodeUvarint(buf)
	}
}

// === Layout Benchmarks ===

func benchmarkLayouts() map[string]Layout {
	return map[string]Layout{
		"u8":     {HeaderOffset: 1, LengthField: LengthField8},
		"u16":    DefaultLayout(),
		"u32":    {HeaderOffset: 4, LengthField: LengthField32},
		"varint": {HeaderOffset: 2, LengthField: LengthFieldVarint},
	}
}

func BenchmarkLayout_Append(b *testing.B) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	for name, l := range benchmarkLayouts() {
		b.Run(name, func(b *testing.B) {
			dst := make([]byte, 0, l.FrameSize(len(payload)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := l.Append(dst[:0], nil, payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLayout_Split(b *testing.B) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	for name, l := range benchmarkLayouts() {
		frame, err := l.Encode(nil, payload)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(frame)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := l.Split(frame); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecoder_ReadLength(b *testing.B) {
	l := DefaultLayout()
	frame, _ := l.Encode([]byte{1, 0}, []byte("hello"))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d := NewDecoderOrder(frame, l.Order())
		d.Skip(l.HeaderOffset)
		if _, err := l.ReadLength(d); err != nil {
			b.Fatal(err)
		}
	}
}
