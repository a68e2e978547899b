// SPDX-License-Identifier: MPL-2.0

// wpiheaders keeps the include paths of VS Code C++ configurations in sync
// with the headers of a WPILib robot project.
package main

import cmd "github.com/ThadHouse/vscode-wpilibheaders/cmd/wpiheaders"

func main() {
	cmd.Execute()
}
