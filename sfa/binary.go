package sfa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errInvalidBinary = errors.New("sfa: invalid binary encoding")

// MarshalBinary implements encoding.BinaryMarshaler.
// Format (little-endian):
//
//	[kind:u8][supervised:u8][fitted:u8][wordLength:u32][alphabetSize:u32]
//	[selected:u32 x wordLength][bins:f64 x wordLength x (alphabetSize-1)]
//
// The selected and bins sections are present only when fitted.
func (s *SFA) MarshalBinary() ([]byte, error) {
	size := 11
	if s.fitted {
		size += 4*s.wordLength + 8*s.wordLength*(s.alphabetSize-1)
	}
	b := make([]byte, size)
	b[0] = byte(s.kind)
	if s.supervised {
		b[1] = 1
	}
	if s.fitted {
		b[2] = 1
	}
	binary.LittleEndian.PutUint32(b[3:7], uint32(s.wordLength))
	binary.LittleEndian.PutUint32(b[7:11], uint32(s.alphabetSize))
	if !s.fitted {
		return b, nil
	}

	off := 11
	for _, dim := range s.selected {
		binary.LittleEndian.PutUint32(b[off:], uint32(dim))
		off += 4
	}
	for _, row := range s.bins {
		for _, v := range row {
			binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
			off += 8
		}
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *SFA) UnmarshalBinary(data []byte) error {
	if len(data) < 11 {
		return fmt.Errorf("%w: %d bytes", errInvalidBinary, len(data))
	}
	kind := HistogramKind(data[0])
	wordLength := int(binary.LittleEndian.Uint32(data[3:7]))
	alphabetSize := int(binary.LittleEndian.Uint32(data[7:11]))
	if kind > InformationGain || wordLength <= 0 || alphabetSize < 2 || alphabetSize > 256 {
		return fmt.Errorf("%w: kind=%d wordLength=%d alphabet=%d", errInvalidBinary, kind, wordLength, alphabetSize)
	}

	fitted := data[2] == 1
	want := 11
	if fitted {
		want += 4*wordLength + 8*wordLength*(alphabetSize-1)
	}
	if len(data) != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", errInvalidBinary, want, len(data))
	}

	*s = SFA{
		kind:         kind,
		wordLength:   wordLength,
		alphabetSize: alphabetSize,
		supervised:   data[1] == 1,
		fitted:       fitted,
	}
	if !fitted {
		return nil
	}

	off := 11
	s.selected = make([]int, wordLength)
	for i := range s.selected {
		s.selected[i] = int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	s.bins = make([][]float64, wordLength)
	for i := range s.bins {
		row := make([]float64, alphabetSize-1)
		for j := range row {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
		s.bins[i] = row
	}
	return nil
}
