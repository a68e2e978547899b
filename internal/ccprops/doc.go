// SPDX-License-Identifier: MPL-2.0

// Package ccprops rewrites the include paths of a C/C++ extension
// configuration file (c_cpp_properties.json).
//
// The document is edited in place with gjson/sjson rather than decoded into
// Go structs, so fields the merger does not own keep their values and their
// order. Only "includePath" (always) and "intelliSenseMode" (for the Windows
// entry) are touched.
package ccprops
