// Package dtype decodes raw HDF5 elements into value trees and encodes them back.
//
// A [Value] is one of three shapes:
//
//   - a scalar: Int, Uint, Float, String or Bytes
//   - a Compound with ordered, named fields
//   - an Array with dimensions and row-major elements
//
// The shape mirrors the HDF5 datatype exactly, so a compound member that is
// itself an array of compounds decodes to an Array of Compound values.
//
// # Decoding
//
// Use [Decode] for self-contained types and a [Decoder] when the data may
// hold variable-length strings, which live in the file's global heap:
//
//	dec := dtype.NewDecoder(reader)
//	values, err := dec.DecodeAll(datatype, raw, n)
//
// # Encoding
//
// [Encode] is the inverse of [Decode] for fixed-size types. Compound fields
// are matched by name and members missing from the value are zero filled.
package dtype
