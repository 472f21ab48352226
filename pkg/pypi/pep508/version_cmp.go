// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep508

import "github.com/pep-run/pep/pkg/pypi/pep440"

// evalVersionOp evaluates a PEP 440 version comparison between two marker
// operands. Per PEP 508, the comparison is the PEP 440 comparison, not a
// lexical string comparison; operands that fail to parse as PEP 440
// versions fall back to a string comparison (the spec explicitly allows
// comparing against non-version strings like platform_version).
func evalVersionOp(lhs string, op MarkerOp, rhs string) bool {
	lv, lerr := pep440.Parse(lhs)
	rv, rerr := pep440.Parse(rhs)
	if lerr != nil || rerr != nil {
		return stringVersionOp(lhs, op, rhs)
	}
	switch op {
	case OpLess:
		return pep440.Less(lv, rv)
	case OpLessEq:
		return pep440.Compare(lv, rv) <= 0
	case OpGreater:
		return pep440.Compare(lv, rv) > 0
	case OpGreaterEq:
		return pep440.Compare(lv, rv) >= 0
	case OpTildeEqual:
		spec := pep440.Specifier{Operator: pep440.OpCompatible, Version: rv, Raw: rhs}
		return spec.Contains(lv)
	default:
		return false
	}
}

func stringVersionOp(lhs string, op MarkerOp, rhs string) bool {
	switch op {
	case OpLess:
		return lhs < rhs
	case OpLessEq:
		return lhs <= rhs
	case OpGreater:
		return lhs > rhs
	case OpGreaterEq:
		return lhs >= rhs
	default:
		return false
	}
}
