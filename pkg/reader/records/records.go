// Package records reads and writes spectrum records: a compact binary cache
// of parsed spectra. A file is a header message followed by one message per
// spectrum, each prefixed with its varint length. Messages use the protobuf
// wire format.
package records

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// maxMessageSize bounds a single record to catch corrupt length prefixes.
const maxMessageSize = 256 << 20

// Header field numbers
const (
	headerRunID   protowire.Number = 1
	headerSource  protowire.Number = 2
	headerVersion protowire.Number = 3
)

// Spectrum field numbers
const (
	fieldScan        protowire.Number = 1
	fieldPrecursorMZ protowire.Number = 2
	fieldCharges     protowire.Number = 3
	fieldPeakMZ      protowire.Number = 4
	fieldIntensity   protowire.Number = 5
	fieldRetention   protowire.Number = 6
)

// ErrNotRecords is returned when a file does not start with a valid header.
var ErrNotRecords = errors.New("not a spectrum records file")

// Header describes a records file.
type Header struct {
	RunID   string
	Source  string
	Version uint64
}

// Writer appends spectra to a records stream.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter writes the header and returns a Writer.
func NewWriter(w io.Writer, header Header) (*Writer, error) {
	rw := &Writer{w: bufio.NewWriter(w)}

	var msg []byte
	msg = protowire.AppendTag(msg, headerRunID, protowire.BytesType)
	msg = protowire.AppendString(msg, header.RunID)
	msg = protowire.AppendTag(msg, headerSource, protowire.BytesType)
	msg = protowire.AppendString(msg, header.Source)
	msg = protowire.AppendTag(msg, headerVersion, protowire.VarintType)
	msg = protowire.AppendVarint(msg, FormatVersion)

	if err := rw.writeMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return rw, nil
}

// WriteSpectrum appends one spectrum.
func (w *Writer) WriteSpectrum(s *core.Spectrum) error {
	msg := w.buf[:0]

	msg = protowire.AppendTag(msg, fieldScan, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(s.ScanNumber))
	msg = protowire.AppendTag(msg, fieldPrecursorMZ, protowire.Fixed64Type)
	msg = protowire.AppendFixed64(msg, math.Float64bits(s.PrecursorMZ))

	if len(s.Charges) > 0 {
		var packed []byte
		for _, z := range s.Charges {
			packed = protowire.AppendVarint(packed, uint64(z))
		}
		msg = protowire.AppendTag(msg, fieldCharges, protowire.BytesType)
		msg = protowire.AppendBytes(msg, packed)
	}

	if len(s.Peaks) > 0 {
		mz := make([]byte, 0, 8*len(s.Peaks))
		intensity := make([]byte, 0, 8*len(s.Peaks))
		for _, p := range s.Peaks {
			mz = protowire.AppendFixed64(mz, math.Float64bits(p.MZ))
			intensity = protowire.AppendFixed64(intensity, math.Float64bits(p.Intensity))
		}
		msg = protowire.AppendTag(msg, fieldPeakMZ, protowire.BytesType)
		msg = protowire.AppendBytes(msg, mz)
		msg = protowire.AppendTag(msg, fieldIntensity, protowire.BytesType)
		msg = protowire.AppendBytes(msg, intensity)
	}

	if s.RetentionTime != nil {
		msg = protowire.AppendTag(msg, fieldRetention, protowire.Fixed64Type)
		msg = protowire.AppendFixed64(msg, math.Float64bits(*s.RetentionTime))
	}

	w.buf = msg
	return w.writeMessage(msg)
}

// Flush flushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeMessage(msg []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(msg)))
	if _, err := w.w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.w.Write(msg)
	return err
}

// Reader streams spectra from a records file.
type Reader struct {
	r           *bufio.Reader
	header      Header
	count       int
	currentSpec *core.Spectrum
	err         error
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	rr := &Reader{r: bufio.NewReader(r)}
	msg, err := rr.readMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecords, err)
	}
	header, err := decodeHeader(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecords, err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotRecords, header.Version)
	}
	rr.header = header
	return rr, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	msg, err := r.readMessage()
	if err != nil {
		if err != io.EOF {
			r.err = fmt.Errorf("record %d: %w", r.count+1, err)
		}
		return false
	}

	spec, err := decodeSpectrum(msg)
	if err != nil {
		r.err = fmt.Errorf("record %d: %w", r.count+1, err)
		return false
	}
	r.count++
	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readMessage() ([]byte, error) {
	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("invalid length prefix: %w", err)
	}
	if size > maxMessageSize {
		return nil, fmt.Errorf("record of %d bytes exceeds limit", size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r.r, msg); err != nil {
		return nil, fmt.Errorf("truncated record: %w", err)
	}
	return msg, nil
}

func decodeHeader(msg []byte) (Header, error) {
	var h Header
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == headerRunID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(msg)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.RunID = v
			msg = msg[n:]
		case num == headerSource && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(msg)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.Source = v
			msg = msg[n:]
		case num == headerVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.Version = v
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			msg = msg[n:]
		}
	}
	return h, nil
}

func decodeSpectrum(msg []byte) (*core.Spectrum, error) {
	spec := &core.Spectrum{SourceFormat: "records", Peaks: []core.Peak{}}
	var mzs, intensities []float64

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == fieldScan && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			spec.ScanNumber = int(v)
			msg = msg[n:]
		case num == fieldPrecursorMZ && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			spec.PrecursorMZ = math.Float64frombits(v)
			msg = msg[n:]
		case num == fieldRetention && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rt := math.Float64frombits(v)
			spec.RetentionTime = &rt
			msg = msg[n:]
		case num == fieldCharges && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			for len(packed) > 0 {
				z, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, protowire.ParseError(m)
				}
				spec.Charges = append(spec.Charges, int(z))
				packed = packed[m:]
			}
			msg = msg[n:]
		case (num == fieldPeakMZ || num == fieldIntensity) && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			values, err := decodeDoubles(packed)
			if err != nil {
				return nil, err
			}
			if num == fieldPeakMZ {
				mzs = values
			} else {
				intensities = values
			}
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			msg = msg[n:]
		}
	}

	if len(mzs) != len(intensities) {
		return nil, fmt.Errorf("scan %d: %d m/z values but %d intensities", spec.ScanNumber, len(mzs), len(intensities))
	}
	for i := range mzs {
		spec.Peaks = append(spec.Peaks, core.Peak{MZ: mzs[i], Intensity: intensities[i]})
	}
	return spec, nil
}

func decodeDoubles(packed []byte) ([]float64, error) {
	if len(packed)%8 != 0 {
		return nil, fmt.Errorf("packed doubles of length %d", len(packed))
	}
	out := make([]float64, 0, len(packed)/8)
	for len(packed) > 0 {
		v, n := protowire.ConsumeFixed64(packed)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float64frombits(v))
		packed = packed[n:]
	}
	return out, nil
}
