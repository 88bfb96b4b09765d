package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntern(t *testing.T) {
	p := NewPool()
	a := p.Intern("counter")
	b := p.Intern(string([]byte("counter")))
	assert.Equal(t, a, b)
	assert.Equal(t, 1, p.Len())

	p.Intern("other")
	assert.Equal(t, 2, p.Len())
	p.Intern("other")
	assert.Equal(t, 2, p.Len(), "re-interning adds nothing")
	p.Intern("missing")
	assert.Equal(t, 3, p.Len())
}
