// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	// CompilerNotFoundId covers a missing or failing cross-compiler.
	CompilerNotFoundId Id = iota + 1
	// SearchListMissingId covers compiler output without the include search list.
	SearchListMissingId
	// BuildToolFailedId covers a failing build tool invocation.
	BuildToolFailedId
	// PropertiesParseFailedId covers a malformed c_cpp_properties.json.
	PropertiesParseFailedId
	// PropertiesWriteFailedId covers a c_cpp_properties.json that could not be written.
	PropertiesWriteFailedId
	// RunInProgressId covers a trigger while another run is active.
	RunInProgressId
	// ConfigLoadFailedId covers an invalid wpiheaders config file.
	ConfigLoadFailedId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is Markdown text rendered for the user.
	MarkdownMsg string

	// HttpLink is a documentation or reference URL.
	HttpLink string

	// Issue is a catalog entry with Markdown remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw Markdown guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guidance with the named glamour style ("dark", "light",
// "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	compilerNotFoundIssue = &Issue{
		id: CompilerNotFoundId,
		mdMsg: `
# The cross-compiler could not be run

wpiheaders asks the roboRIO cross-compiler for its built-in include search
path, and that command failed.

## Things you can try:
- Install the toolchain for this season:
~~~
$ ./gradlew installRoboRioToolchain
~~~
- Make sure the toolchain's bin directory is on your PATH
- Point ` + "`compiler.command`" + ` in your wpiheaders config at the compiler binary`,
		docLinks: []HttpLink{"https://docs.wpilib.org/en/stable/docs/software/vscode-overview/"},
	}

	searchListMissingIssue = &Issue{
		id: SearchListMissingId,
		mdMsg: `
# The compiler did not print its include search list

The compiler ran, but its diagnostic output did not contain the line
` + "`#include <...> search starts here:`" + `.

## Things you can try:
- Run the compiler command by hand and check its output
- Make sure ` + "`compiler.command`" + ` passes ` + "`-E -v`" + `
- Adjust ` + "`compiler.start_marker`" + ` if your compiler uses a different wording`,
	}

	buildToolFailedIssue = &Issue{
		id: BuildToolFailedId,
		mdMsg: `
# The build tool failed

Library headers are listed by the project's ` + "`getHeaders`" + ` task, and
running it failed.

## Things you can try:
- Run the task by hand from the workspace root:
~~~
$ ./gradlew getHeaders
~~~
- Check that the workspace root contains the gradle wrapper
- Make sure the build files apply the plugin that provides ` + "`getHeaders`",
	}

	propertiesParseFailedIssue = &Issue{
		id: PropertiesParseFailedId,
		mdMsg: `
# c_cpp_properties.json could not be parsed

The file is not valid JSON or has no ` + "`configurations`" + ` list. It was
left untouched.

## Things you can try:
- Remove comments and trailing commas from the file
- Regenerate the file from the C/C++ extension's configuration UI`,
	}

	propertiesWriteFailedIssue = &Issue{
		id: PropertiesWriteFailedId,
		mdMsg: `
# c_cpp_properties.json could not be written

The merged configuration was not saved. The previous contents are intact.

## Things you can try:
- Check the permissions of the ` + "`.vscode`" + ` directory
- Make sure the disk is not full or read-only`,
	}

	runInProgressIssue = &Issue{
		id: RunInProgressId,
		mdMsg: `
# A header update is already running

Only one update can run at a time. Wait for it to finish and try again.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The wpiheaders configuration could not be loaded

## Things you can try:
- Check the file for CUE syntax errors
- Print the effective defaults:
~~~
$ wpiheaders config dump
~~~`,
	}

	issues = map[Id]*Issue{
		compilerNotFoundIssue.Id():      compilerNotFoundIssue,
		searchListMissingIssue.Id():     searchListMissingIssue,
		buildToolFailedIssue.Id():       buildToolFailedIssue,
		propertiesParseFailedIssue.Id(): propertiesParseFailedIssue,
		propertiesWriteFailedIssue.Id(): propertiesWriteFailedIssue,
		runInProgressIssue.Id():         runInProgressIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// ForError picks the catalog entry that best explains err, or nil when none
// applies.
func ForError(err error) *Issue {
	var extractErr *ExtractionError
	switch Kind(err) {
	case KindExtraction:
		if errors.As(err, &extractErr) && extractErr.Source == SourceBuildTool {
			return Get(BuildToolFailedId)
		}
		return compilerIssue(err)
	case KindProcess:
		return compilerIssue(err)
	case KindParse:
		return Get(PropertiesParseFailedId)
	case KindWrite:
		return Get(PropertiesWriteFailedId)
	default:
		return nil
	}
}

// compilerIssue tells a compiler that never ran (ExitCode -1) from one that
// ran but printed no search list.
func compilerIssue(err error) *Issue {
	var procErr *ProcessError
	if errors.As(err, &procErr) && procErr.ExitCode < 0 {
		return Get(CompilerNotFoundId)
	}
	return Get(SearchListMissingId)
}
