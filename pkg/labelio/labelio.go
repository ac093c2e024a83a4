// Package labelio stores label volumes as zstd-compressed binary files.
//
// The decompressed stream is little-endian:
//
//	magic   [4]byte "MRFL"
//	version uint16
//	classes uint16
//	dims    uint16
//	size    [dims]uint32
//	labels  [prod(size)]uint16
package labelio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const (
	magic   = "MRFL"
	version = 1

	// MaxClasses is the largest class count the format can hold
	MaxClasses = 1 << 16
)

// ErrFormat reports a stream that is not a label volume.
var ErrFormat = errors.New("labelio: invalid label volume")

// Volume is a decoded label volume.
type Volume struct {
	Size            []int
	NumberOfClasses int
	Labels          []int
}

type header struct {
	Magic   [4]byte
	Version uint16
	Classes uint16
	Dims    uint16
}

// Write encodes v to w.
func Write(w io.Writer, v Volume) error {
	if v.NumberOfClasses < 1 || v.NumberOfClasses > MaxClasses {
		return fmt.Errorf("labelio: %d classes outside [1, %d]", v.NumberOfClasses, MaxClasses)
	}
	total := 1
	for _, s := range v.Size {
		total *= s
	}
	if len(v.Size) == 0 || total != len(v.Labels) {
		return fmt.Errorf("labelio: size %v does not match %d labels", v.Size, len(v.Labels))
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("labelio: create encoder: %w", err)
	}
	bw := bufio.NewWriter(enc)

	h := header{Version: version, Classes: uint16(v.NumberOfClasses - 1), Dims: uint16(len(v.Size))}
	copy(h.Magic[:], magic)
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		enc.Close()
		return err
	}
	for _, s := range v.Size {
		if err := binary.Write(bw, binary.LittleEndian, uint32(s)); err != nil {
			enc.Close()
			return err
		}
	}

	var buf [2]byte
	for i, l := range v.Labels {
		if l < 0 || l >= v.NumberOfClasses {
			enc.Close()
			return fmt.Errorf("labelio: label %d at pixel %d outside [0, %d)", l, i, v.NumberOfClasses)
		}
		binary.LittleEndian.PutUint16(buf[:], uint16(l))
		if _, err := bw.Write(buf[:]); err != nil {
			enc.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a volume written by Write.
func Read(r io.Reader) (Volume, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Volume{}, fmt.Errorf("labelio: create decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return Volume{}, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if string(h.Magic[:]) != magic {
		return Volume{}, fmt.Errorf("%w: bad magic %q", ErrFormat, h.Magic[:])
	}
	if h.Version != version {
		return Volume{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, h.Version)
	}
	if h.Dims == 0 {
		return Volume{}, fmt.Errorf("%w: zero dimensions", ErrFormat)
	}

	v := Volume{
		Size:            make([]int, h.Dims),
		NumberOfClasses: int(h.Classes) + 1,
	}
	total := 1
	for d := range v.Size {
		var s uint32
		if err := binary.Read(br, binary.LittleEndian, &s); err != nil {
			return Volume{}, fmt.Errorf("%w: size: %v", ErrFormat, err)
		}
		if s == 0 {
			return Volume{}, fmt.Errorf("%w: empty dimension %d", ErrFormat, d)
		}
		v.Size[d] = int(s)
		total *= int(s)
	}

	v.Labels = make([]int, total)
	var buf [2]byte
	for i := range v.Labels {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return Volume{}, fmt.Errorf("%w: labels truncated at %d: %v", ErrFormat, i, err)
		}
		l := int(binary.LittleEndian.Uint16(buf[:]))
		if l >= v.NumberOfClasses {
			return Volume{}, fmt.Errorf("%w: label %d at pixel %d exceeds %d classes", ErrFormat, l, i, v.NumberOfClasses)
		}
		v.Labels[i] = l
	}
	return v, nil
}

// WriteFile writes v to path.
func WriteFile(path string, v Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a volume from path.
func ReadFile(path string) (Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return Volume{}, err
	}
	defer f.Close()
	return Read(f)
}
