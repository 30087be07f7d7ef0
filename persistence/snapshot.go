package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/sfatrie/compress"
)

// WriteSnapshot frames the bytes produced by payload as a snapshot: header,
// compressed payload block and CRC32C trailer.
func WriteSnapshot(w io.Writer, codec compress.Kind, flags uint8, payload func(io.Writer) error) error {
	var buf bytes.Buffer
	cw := newCRCWriter(&buf)
	if err := payload(cw); err != nil {
		return err
	}

	block, err := compress.EncodeBlock(buf.Bytes(), codec)
	if err != nil {
		return fmt.Errorf("persistence: encode payload: %w", err)
	}

	if err := WriteHeader(w, FileHeader{Codec: codec, Flags: flags, PayloadSize: uint64(len(block))}); err != nil {
		return err
	}
	if _, err := w.Write(block); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.h.Sum32())
	_, err = w.Write(trailer[:])
	return err
}

// ReadSnapshot validates a snapshot written by WriteSnapshot and passes the
// decoded payload to payload. The trailer checksum is verified after payload
// returns; bytes payload did not consume are still checked.
func ReadSnapshot(r io.Reader, payload func(io.Reader, FileHeader) error) (FileHeader, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return FileHeader{}, err
	}

	data, err := compress.ReadBlock(io.LimitReader(r, int64(h.PayloadSize)), h.Codec)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			err = ErrTruncated
		case errors.Is(err, compress.ErrChecksum):
			return h, fmt.Errorf("persistence: read payload: %w: %w", ErrChecksumMismatch, err)
		}
		return h, fmt.Errorf("persistence: read payload: %w", err)
	}

	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return h, fmt.Errorf("%w: missing checksum trailer", ErrTruncated)
	}

	cr := newCRCReader(bytes.NewReader(data))
	if err := payload(cr, h); err != nil {
		return h, err
	}
	return h, cr.verify(binary.LittleEndian.Uint32(trailer[:]))
}
