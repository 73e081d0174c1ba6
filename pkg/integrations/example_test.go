package integrations_test

import (
	"fmt"

	"github.com/matzehuels/npmlens/pkg/integrations"
)

func ExampleNormalizePkgName() {
	// Lookup keys are trimmed and lower-cased
	fmt.Println(integrations.NormalizePkgName("React"))
	fmt.Println(integrations.NormalizePkgName("  @Types/Node  "))
	// Output:
	// react
	// @types/node
}

func ExampleNormalizeRepoURL() {
	// Various repository URL formats are normalized to HTTPS
	fmt.Println(integrations.NormalizeRepoURL("git@github.com:user/repo.git"))
	fmt.Println(integrations.NormalizeRepoURL("git+https://github.com/user/repo.git"))
	fmt.Println(integrations.NormalizeRepoURL("github:user/repo"))
	// Output:
	// https://github.com/user/repo
	// https://github.com/user/repo
	// https://github.com/user/repo
}

func ExamplePathEscapeName() {
	// Scoped names become a single path segment
	fmt.Println(integrations.PathEscapeName("@babel/core"))
	// Output:
	// @babel%2Fcore
}

func ExampleURLEncode() {
	// URL-encode special characters for query strings
	fmt.Println(integrations.URLEncode("@scope/package"))
	fmt.Println(integrations.URLEncode("date picker"))
	// Output:
	// %40scope%2Fpackage
	// date+picker
}

func Example_errors() {
	// Sentinel errors for upstream operations
	fmt.Println("ErrNotFound:", integrations.ErrNotFound)
	fmt.Println("ErrMalformed:", integrations.ErrMalformed)
	// Output:
	// ErrNotFound: resource not found
	// ErrMalformed: malformed upstream response
}
