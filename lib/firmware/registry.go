// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

// Entry is one configured firmware mapping. Name is the logical name
// matched against request nodes; Source is the file whose contents are
// delivered. An empty Source delivers "no firmware available".
type Entry struct {
	Name   string
	Source string

	delivered bool
}

// Delivered reports whether the entry has been handed to the kernel.
func (e Entry) Delivered() bool { return e.delivered }

// Registry holds the entries for one run of the loader, in registration
// order. Duplicate names are kept as independent entries; each needs its
// own matching request.
//
// The zero value is an empty registry ready for use.
type Registry struct {
	entries []Entry
}

// Register appends an undelivered entry.
func (r *Registry) Register(name, source string) {
	r.entries = append(r.entries, Entry{Name: name, Source: source})
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a copy of the entries in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Remaining returns the number of entries not yet delivered.
func (r *Registry) Remaining() int {
	count := 0
	for i := range r.entries {
		if !r.entries[i].delivered {
			count++
		}
	}
	return count
}

// AllDelivered reports whether every entry has been delivered. An empty
// registry is trivially complete.
func (r *Registry) AllDelivered() bool { return r.Remaining() == 0 }

// markDelivered flips entry i to delivered. The flag never goes back.
func (r *Registry) markDelivered(i int) {
	r.entries[i].delivered = true
}
