// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.


// Package cbor holds the CBOR encoder and decoder settings used for spilled rows.
//
// Rows are encoded as CBOR arrays of text strings. Field values are opaque
// to the encoder, so invalid UTF-8 is written and decoded unchanged.
package cbor

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/cardinalhq/flattable/pipeline"
)

// Config holds CBOR encoder and decoder configurations for Row data.
type Config struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewConfig creates a new CBOR configuration for Row data.
func NewConfig() (*Config, error) {
	encMode, err := cbor.EncOptions{
		Sort:   cbor.SortNone,
		String: cbor.StringToTextString,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		UTF8:             cbor.UTF8DecodeInvalid, // fields are opaque bytes
		MaxArrayElements: 1 << 24,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &Config{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

// RowEncoder writes rows to a stream as consecutive CBOR arrays.
type RowEncoder struct {
	enc *cbor.Encoder
}

// RowDecoder reads rows written by a RowEncoder.
type RowDecoder struct {
	dec *cbor.Decoder
}

// NewEncoder creates a streaming row encoder.
func (c *Config) NewEncoder(w io.Writer) *RowEncoder {
	return &RowEncoder{enc: c.encMode.NewEncoder(w)}
}

// NewDecoder creates a streaming row decoder.
func (c *Config) NewDecoder(r io.Reader) *RowDecoder {
	return &RowDecoder{dec: c.decMode.NewDecoder(r)}
}

// Encode writes one row.
func (e *RowEncoder) Encode(row pipeline.Row) error {
	return e.enc.Encode([]string(row))
}

// Decode reads the next row. It returns io.EOF at the end of the stream.
func (d *RowDecoder) Decode() (pipeline.Row, error) {
	var fields []string
	if err := d.dec.Decode(&fields); err != nil {
		return nil, err
	}
	return normalize(fields), nil
}

// normalize maps a decoded CBOR null back to an empty row.
func normalize(fields []string) pipeline.Row {
	if fields == nil {
		return pipeline.Row{}
	}
	return pipeline.Row(fields)
}
