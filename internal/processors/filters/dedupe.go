package filters

import "sync"

// DedupeStore remembers fingerprints of delivered posts for the lifetime of the process.
// It never evicts. Claim/Release keep two workers from delivering the same fingerprint
// at once when sources are processed in parallel.
type DedupeStore struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	inFlight map[string]struct{}
}

func NewDedupeStore() *DedupeStore {
	return &DedupeStore{
		seen:     make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
}

func (d *DedupeStore) Seen(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.seen[fp]
	return ok
}

func (d *DedupeStore) Record(fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[fp] = struct{}{}
	delete(d.inFlight, fp)
}

// Claim reports false when fp was already delivered or another caller holds it.
func (d *DedupeStore) Claim(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return false
	}
	if _, ok := d.inFlight[fp]; ok {
		return false
	}
	d.inFlight[fp] = struct{}{}
	return true
}

func (d *DedupeStore) Release(fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.inFlight, fp)
}

func (d *DedupeStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.seen)
}
