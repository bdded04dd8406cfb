package counters

// Accumulate sets dest[c] = rule(self[c], other[c], coeff) for every counter c.
// Headers of dest are left alone. dest may alias self or other. All three
// records must share one schema.
func Accumulate(self, other, dest *Unpacked, coeff int64) error {
	s := self.schema
	for _, r := range []*Unpacked{other, dest} {
		if !s.Equal(r.schema) {
			return &SchemaMismatchError{Want: s.name, Got: r.schema.name}
		}
	}

	for i := s.nHeaders; i < len(s.fields); i++ {
		f := s.fields[i]
		v := f.Rule.combine(f.Type, self.values[i], other.values[i], coeff)
		if f.Type.kind == Float {
			v, _ = f.Type.Normalize(v)
		}
		dest.values[i] = v
	}
	return nil
}

// Delta sets dest = self - other for add counters; other rules behave as
// in Accumulate with a coefficient of -1.
func Delta(self, other, dest *Unpacked) error {
	return Accumulate(self, other, dest, -1)
}

// Accumulate folds other into u, in place.
func (u *Unpacked) Accumulate(other *Unpacked) error {
	return Accumulate(u, other, u, 1)
}

// Change sets dest to what happened between prev and cur: add counters
// become cur - prev, every other counter is a gauge and takes cur's value.
func Change(cur, prev, dest *Unpacked) error {
	if err := Delta(cur, prev, dest); err != nil {
		return err
	}
	s := cur.schema
	for i := s.nHeaders; i < len(s.fields); i++ {
		if s.fields[i].Rule != Add {
			dest.values[i] = cur.values[i]
		}
	}
	return nil
}
