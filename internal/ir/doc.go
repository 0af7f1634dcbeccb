// Package ir provides the canonical value representation used for hashing
// filter trees and fingerprinting compiled statements, plus the compiled
// schema types (SchemaSpec, EntitySpec) produced by the schema loader.
//
// This package imports nothing internal. All other internal packages may
// import ir; ir stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every Go value a filter may carry reduces to an IRValue via MakeHashable
//   - Mappings are order-independent, sequences are order-dependent
//   - Funcs are the only unhashable values (UnhashableValueError)
//   - All JSON tags use snake_case
package ir
