package password

// Dispatcher hashes with a primary Hasher and verifies with whichever
// registered Hasher recognises the encoded form.
type Dispatcher struct {
	primary Hasher
	all     []Hasher
}

// NewDispatcher returns a Dispatcher hashing with primary. legacy hashers are
// consulted only for verification and upgrade checks.
func NewDispatcher(primary Hasher, legacy ...Hasher) *Dispatcher {
	all := make([]Hasher, 0, len(legacy)+1)
	all = append(all, primary)
	for _, h := range legacy {
		if h != nil {
			all = append(all, h)
		}
	}
	return &Dispatcher{primary: primary, all: all}
}

// Hash delegates to the primary hasher.
func (d *Dispatcher) Hash(password string) (string, error) {
	return d.primary.Hash(password)
}

// Verify routes encodedHash to the hasher that recognises it.
func (d *Dispatcher) Verify(password, encodedHash string) (bool, error) {
	h := d.lookup(encodedHash)
	if h == nil {
		return false, ErrUnrecognizedHash
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true for any hash the primary does not produce, and for
// primary hashes with weaker parameters.
func (d *Dispatcher) NeedsUpgrade(encodedHash string) (bool, error) {
	if !d.primary.Recognizes(encodedHash) {
		if d.lookup(encodedHash) == nil {
			return false, ErrUnrecognizedHash
		}
		return true, nil
	}
	return d.primary.NeedsUpgrade(encodedHash)
}

// Recognizes reports whether any registered hasher understands encodedHash.
func (d *Dispatcher) Recognizes(encodedHash string) bool {
	return d.lookup(encodedHash) != nil
}

func (d *Dispatcher) lookup(encodedHash string) Hasher {
	for _, h := range d.all {
		if h.Recognizes(encodedHash) {
			return h
		}
	}
	return nil
}
