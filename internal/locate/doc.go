// Package locate finds the signable artifacts in a build tree.
//
// Discovery is convention based. Each project descriptor found under
// libs/*/ or libs/*/*/ implies one artifact path through the Conventions
// table:
//
//	libs/Foo/Foo.vcxproj  ->  libs/Foo/Release/Foo.dll
//
// A descriptor contributes its artifact only when that file exists and the
// descriptor's stem does not contain the test marker (case-insensitive).
// Locate never mutates the tree.
package locate
