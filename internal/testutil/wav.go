// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"time"
)

// SilentWav returns a mono 16-bit PCM wav of the given length.
func SilentWav(sampleRate int, d time.Duration) []byte {
	samples := int(d.Seconds() * float64(sampleRate))
	dataLen := uint32(samples * 2)

	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, 36+dataLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1)) // PCM
	_ = binary.Write(&buf, le, uint16(1)) // mono
	_ = binary.Write(&buf, le, uint32(sampleRate))
	_ = binary.Write(&buf, le, uint32(sampleRate*2))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, le, dataLen)
	buf.Write(make([]byte, dataLen))

	return buf.Bytes()
}
