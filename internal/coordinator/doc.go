// SPDX-License-Identifier: MPL-2.0

// Package coordinator drives a header update across workspace roots.
//
// A Coordinator allows one run at a time. A trigger that arrives while a run
// is active is reported to the user and otherwise ignored. Each run extracts
// the compiler's include directories once, then processes every root
// concurrently: find configuration files, ask the build tool for library
// headers, merge, write. A failing root never affects its siblings.
package coordinator
