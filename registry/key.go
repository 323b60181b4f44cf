package registry

import (
	"fmt"
	"reflect"
)

// Key identifies a component across reconstructions. Identity is the
// component's declaring type plus an optional discriminator, never the
// instance itself: instances are destroyed and recreated, the key is
// what survives.
type Key struct {
	// Type is the component's type name, e.g. "sync.Engine".
	Type string

	// Discriminator distinguishes multiple components of one type, e.g.
	// an account id. Empty when the type alone is the identity.
	Discriminator string
}

// NewKey builds a Key from an explicit type name and discriminator.
func NewKey(typeName, discriminator string) Key {
	return Key{Type: typeName, Discriminator: discriminator}
}

// KeyFor derives a Key from a component value's dynamic type. Pointer
// indirection is stripped so *Engine and Engine share an identity.
func KeyFor(component any, discriminator string) Key {
	t := reflect.TypeOf(component)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := "anonymous"
	if t != nil {
		name = t.String()
	}
	return Key{Type: name, Discriminator: discriminator}
}

// String renders the key for logs and state-store keys.
func (k Key) String() string {
	if k.Discriminator == "" {
		return k.Type
	}
	return fmt.Sprintf("%s#%s", k.Type, k.Discriminator)
}
