// Package codec wraps the JSON encoding used by diagnostic surfaces, so the
// choice of JSON library lives in one place.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

func Encode(value any) ([]byte, error) {
	bz, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrap(err, "encode")
	}
	return bz, nil
}

func Decode[T any](bz []byte) (T, error) {
	value := new(T)
	if err := json.Unmarshal(bz, value); err != nil {
		return *value, eris.Wrap(err, "decode")
	}
	return *value, nil
}
