package config

import (
	"bytes"

	"github.com/magiconair/properties"
	"github.com/spf13/cast"
)

// propertiesFormat is the config type the Java-style properties codec is
// registered under.
const propertiesFormat = "properties"

// propertiesCodec reads and writes flat key=value files. Keys are kept whole,
// so "cas.url" and "cas.url.login" are independent entries, and ${...} in a
// value is left as written.
type propertiesCodec struct{}

func (propertiesCodec) Decode(b []byte, v map[string]any) error {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(b)
	if err != nil {
		return err
	}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		v[key] = value
	}
	return nil
}

func (propertiesCodec) Encode(v map[string]any) ([]byte, error) {
	p := properties.NewProperties()
	for key, value := range v {
		if _, _, err := p.Set(key, cast.ToString(value)); err != nil {
			return nil, err
		}
	}
	p.Sort()

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
