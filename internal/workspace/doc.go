// SPDX-License-Identifier: MPL-2.0

// Package workspace resolves the workspace roots a header update runs over
// and finds the c_cpp_properties.json files inside each of them.
//
// Roots come, in order of precedence, from explicit paths, a VS Code
// multi-root .code-workspace file, configured roots, or the current
// directory.
package workspace
