// SPDX-License-Identifier: MPL-2.0

// Package issue provides the error vocabulary shared by every stage of a header
// update run.
//
// Four error kinds describe where a run failed: ProcessError (an external
// command failed), ExtractionError (expected markers were absent from process
// output), ParseError (a c_cpp_properties.json file is not usable JSON) and
// WriteError (filesystem I/O failed). Each typed error unwraps to a sentinel so
// callers can classify failures with errors.Is.
//
// ActionableError and the issue catalog turn those failures into user-facing
// messages with remediation steps.
package issue
