package nn

import (
	"fmt"
	"slices"

	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/samber/lo"
)

// StateDict returns the parameters of every leaf module keyed by
// "<path>.<param>", e.g. "0.weight". The tensors are shared, not copied.
func StateDict[B tensor.Backend](root Module[B]) map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor)
	Walk(root, func(path string, m Module[B]) {
		if _, ok := m.(Container[B]); ok {
			return
		}
		for _, p := range m.Parameters() {
			key := p.Name()
			if path != "" {
				key = path + "." + key
			}
			dict[key] = p.Tensor().Raw()
		}
	})
	return dict
}

// LoadStateDict copies dict into the parameters of root in place.
//
// Keys and shapes must match StateDict(root) exactly.
func LoadStateDict[B tensor.Backend](root Module[B], dict map[string]*tensor.RawTensor) error {
	params := StateDict(root)
	if missing, extra := lo.Difference(lo.Keys(params), lo.Keys(dict)); len(missing) > 0 || len(extra) > 0 {
		slices.Sort(missing)
		slices.Sort(extra)
		return fmt.Errorf("state dict mismatch: missing %v, unexpected %v", missing, extra)
	}
	for key, dst := range params {
		src := dict[key]
		if !src.Shape().Equal(dst.Shape()) || src.DType() != dst.DType() {
			return fmt.Errorf("state dict %q: got %s%v, want %s%v", key, src.DType(), src.Shape(), dst.DType(), dst.Shape())
		}
	}
	for key, dst := range params {
		copy(dst.Data(), dict[key].Data())
	}
	return nil
}
