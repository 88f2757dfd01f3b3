// Package archive implements the artifact inspection strategy. It downloads a
// record's installer (flat .pkg/.mpkg, .zip or .tar.gz) into a throwaway
// workspace, reads the package metadata and the embedded app's Info.plist, and
// removes the workspace before returning.
//
// Flat packages are xar containers. Their Payload members are gzip or bzip2
// compressed cpio streams in odc or newc form. pbzx payloads are not read;
// such packages fall back to their Distribution manifest.
package archive
