package wiretap

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"
)

// RecordHeaderLen is the size of a TLS record header on the wire.
const RecordHeaderLen = 5

// ErrNotTLS is returned when bytes do not look like TLS records.
var ErrNotTLS = errors.New("wiretap: not a TLS record stream")

// Record is a TLS record header.
type Record struct {
	ContentType uint8
	Version     uint16
	Length      int
}

func validHeader(typ uint8, vers uint16) bool {
	// change_cipher_spec .. heartbeat, and a 3.x legacy version.
	return typ >= 20 && typ <= 24 && vers>>8 == 3
}

// ParseRecords splits a complete buffer into TLS records. Trailing bytes
// that do not form a whole record are an error.
func ParseRecords(data []byte) ([]Record, error) {
	s := cryptobyte.String(data)
	var out []Record
	for !s.Empty() {
		var (
			typ  uint8
			vers uint16
			body cryptobyte.String
		)
		if !s.ReadUint8(&typ) || !s.ReadUint16(&vers) || !s.ReadUint16LengthPrefixed(&body) {
			return out, ErrNotTLS
		}
		if !validHeader(typ, vers) {
			return out, ErrNotTLS
		}
		out = append(out, Record{ContentType: typ, Version: vers, Length: len(body)})
	}
	return out, nil
}

// RecordScanner extracts TLS record headers from a byte stream delivered
// in arbitrary chunks. Record bodies are skipped, not buffered.
type RecordScanner struct {
	pending []byte
	skip    int
	err     error
}

// Feed consumes the next chunk of the stream and returns the headers that
// completed inside it. After the stream stops looking like TLS, Feed
// returns nothing and Err reports ErrNotTLS.
func (s *RecordScanner) Feed(b []byte) []Record {
	var out []Record
	for len(b) > 0 && s.err == nil {
		if s.skip > 0 {
			n := min(s.skip, len(b))
			s.skip -= n
			b = b[n:]
			continue
		}

		need := RecordHeaderLen - len(s.pending)
		if len(b) < need {
			s.pending = append(s.pending, b...)
			break
		}
		s.pending = append(s.pending, b[:need]...)
		b = b[need:]

		hdr := cryptobyte.String(s.pending)
		var (
			typ    uint8
			vers   uint16
			length uint16
		)
		hdr.ReadUint8(&typ)
		hdr.ReadUint16(&vers)
		hdr.ReadUint16(&length)
		s.pending = s.pending[:0]

		if !validHeader(typ, vers) {
			s.err = ErrNotTLS
			break
		}
		out = append(out, Record{ContentType: typ, Version: vers, Length: int(length)})
		s.skip = int(length)
	}
	return out
}

// Err returns ErrNotTLS once the stream has failed to parse.
func (s *RecordScanner) Err() error {
	return s.err
}
