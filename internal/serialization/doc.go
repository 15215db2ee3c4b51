// Package serialization saves and loads parameter state dicts in the
// SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name → {dtype, shape, data_offsets}]
//	  [Tensor data: raw little-endian bytes]
//
// Only F32 and F64 tensors are supported. An optional "__metadata__" entry
// carries string key/value pairs such as the loss report of a training run.
//
// Example usage:
//
//	dict := nn.StateDict[B](model)
//	err := serialization.WriteFile("model.safetensors", dict, map[string]string{"steps": "100"})
//
//	dict, meta, err := serialization.ReadFile("model.safetensors")
//	err = nn.LoadStateDict[B](model, dict)
package serialization
