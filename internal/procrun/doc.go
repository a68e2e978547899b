// SPDX-License-Identifier: MPL-2.0

// Package procrun runs the external tools a header update depends on: the
// cross-compiler and the project build tool.
//
// Command lines are split with shell quoting rules, so configuration values
// such as `"C:/Program Files/wpilib/bin/g++" -E -v` behave the way they would
// in a terminal. Failures are reported as *issue.ProcessError.
package procrun
