package monitor

import (
	"sync"
)

// knownOfferings is the set of catalog codes seen so far. The first
// observation only seeds it; an empty first catalog still counts as seeded.
type knownOfferings struct {
	mu          sync.Mutex
	initialized bool
	codes       map[string]struct{}
}

func newKnownOfferings() *knownOfferings {
	return &knownOfferings{codes: make(map[string]struct{})}
}

// observe returns the offerings whose code was not known yet and adds them
// to the set. seeded is true when this call initialized the set.
func (k *knownOfferings) observe(list []Offering) (added []Offering, seeded bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		for _, o := range list {
			if o.ProductCode != "" {
				k.codes[o.ProductCode] = struct{}{}
			}
		}
		k.initialized = true
		return nil, true
	}

	for _, o := range list {
		if o.ProductCode == "" {
			continue
		}
		if _, ok := k.codes[o.ProductCode]; ok {
			continue
		}
		k.codes[o.ProductCode] = struct{}{}
		added = append(added, o)
	}
	return added, false
}

func (k *knownOfferings) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.codes)
}
