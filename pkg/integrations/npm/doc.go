// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// This package fetches package metadata from the npm registry
// (https://registry.npmjs.org) or any mirror that serves the same documents.
//
// # Usage
//
//	client := npm.NewClient("")
//	pkg, err := client.FetchPackage(ctx, "express")
//	if errors.Is(err, integrations.ErrNotFound) {
//	    // no such package
//	}
//	fmt.Println(pkg.Name, pkg.Version)
//
// # Endpoints
//
//   - [Client.FetchPackage]: GET /{name}, reduced to the dist-tags latest version
//   - [Client.FetchVersions]: GET /{name}, every version with publish time
//   - [Client.FetchLatest]: GET /{name}/latest, a single manifest
//
// Scoped names are sent as one path segment ("@babel%2Fcore").
//
// # Version Selection
//
// Dependencies come from the "dependencies" field of the latest manifest.
// devDependencies, peerDependencies and optionalDependencies are not included.
package npm
