package counters

import "fmt"

// PackBatch concatenates the packed form of each record in order. There is
// no framing: each record starts with its backend name, which tells a
// receiver how long it is.
func PackBatch(records []Record) ([]byte, error) {
	size := 0
	for _, r := range records {
		size += r.Schema().length
	}

	buf := make([]byte, 0, size)
	for i, r := range records {
		switch rec := r.(type) {
		case *Packed:
			buf = append(buf, rec.buf...)
		case *Unpacked:
			start := len(buf)
			buf = buf[:start+rec.schema.length]
			rec.packInto(buf[start:])
		default:
			return nil, fmt.Errorf("record %d: unsupported type %T", i, r)
		}
	}
	return buf, nil
}

// PackUnpacked is PackBatch for a slice of unpacked records.
func PackUnpacked(records []*Unpacked) ([]byte, error) {
	rs := make([]Record, len(records))
	for i, r := range records {
		rs[i] = r
	}
	return PackBatch(rs)
}

// UnpackBatch splits buf into records, resolving each record's schema by its
// backend-name tag through reg. On error no records are returned: once an
// offset is suspect the rest of the buffer cannot be trusted.
func UnpackBatch(reg *Registry, buf []byte) ([]*Unpacked, error) {
	var out []*Unpacked
	offset := 0
	for offset < len(buf) {
		rest := buf[offset:]
		if len(rest) < NameWidth {
			return nil, &TruncatedBatchError{Offset: offset, Want: NameWidth, Remaining: len(rest)}
		}

		s, err := reg.Lookup(PeekBackend(rest))
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		if len(rest) < s.length {
			return nil, &TruncatedBatchError{Offset: offset, Want: s.length, Remaining: len(rest)}
		}

		p, err := View(s, rest[:s.length])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		out = append(out, p.Unpack())
		offset += s.length
	}
	return out, nil
}
