// Package ident interns identifier names so that every occurrence of a name
// in a compilation shares one string.
package ident

import "github.com/cespare/xxhash/v2"

// Pool is an interning table. Names are bucketed by their xxhash; a bucket
// only holds more than one name on a hash collision.
type Pool struct {
	buckets map[uint64][]string
	count   int
}

func NewPool() *Pool { return &Pool{buckets: make(map[uint64][]string)} }

// Intern returns the canonical copy of name.
func (p *Pool) Intern(name string) string {
	h := xxhash.Sum64String(name)
	for _, s := range p.buckets[h] {
		if s == name {
			return s
		}
	}
	p.buckets[h] = append(p.buckets[h], name)
	p.count++
	return name
}

func (p *Pool) Len() int { return p.count }
