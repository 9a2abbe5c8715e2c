// Package channels packs a bundle of named, co-registered arrays into one
// multi-channel array and unpacks it again.
//
// Pack and Unpack form a bijection: for any bundle whose channels share
// height and width, Unpack(Pack(b)) restores the same names, insertion order,
// depths and samples.
package channels

import (
	"fmt"

	"github.com/utkarsh5026/panotile/raster"
)

// Channel is one named array of a bundle.
type Channel struct {
	Name string
	Data *raster.Image
}

// Bundle is an insertion-ordered collection of channels.
type Bundle struct {
	order  []string
	byName map[string]*raster.Image
}

// NewBundle returns a bundle holding the given channels in argument order.
func NewBundle(chs ...Channel) (*Bundle, error) {
	b := &Bundle{byName: make(map[string]*raster.Image, len(chs))}
	for _, ch := range chs {
		if err := b.Set(ch.Name, ch.Data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Set adds a channel at the end of the bundle. Replacing an existing name
// keeps its original position.
func (b *Bundle) Set(name string, data *raster.Image) error {
	if name == "" {
		return fmt.Errorf("channel name must not be empty")
	}
	if data == nil {
		return fmt.Errorf("channel %q has no data", name)
	}
	if b.byName == nil {
		b.byName = make(map[string]*raster.Image)
	}
	if _, ok := b.byName[name]; !ok {
		b.order = append(b.order, name)
	}
	b.byName[name] = data
	return nil
}

// Get returns the channel stored under name.
func (b *Bundle) Get(name string) (*raster.Image, bool) {
	data, ok := b.byName[name]
	return data, ok
}

// Len is the number of channels.
func (b *Bundle) Len() int {
	return len(b.order)
}

// Names returns the channel names in insertion order.
func (b *Bundle) Names() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Channels returns the channels in insertion order.
func (b *Bundle) Channels() []Channel {
	out := make([]Channel, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, Channel{Name: name, Data: b.byName[name]})
	}
	return out
}

// Equal reports whether both bundles hold the same names in the same order
// with identical arrays.
func (b *Bundle) Equal(o *Bundle) bool {
	if b == nil || o == nil {
		return b == o
	}
	if len(b.order) != len(o.order) {
		return false
	}
	for i, name := range b.order {
		if o.order[i] != name {
			return false
		}
		if !b.byName[name].Equal(o.byName[name]) {
			return false
		}
	}
	return true
}
