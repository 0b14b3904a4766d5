// Package identification decides what a queued path is and which emulated
// systems it may belong to.
//
// Classification sorts a path into a FileKind (directory, archive, BIOS,
// artwork, disc image, ROM or unknown). System identification then tries the
// reference digest table first and falls back to the file extension against
// the registry snapshot the Service was built with. The Service never
// mutates shared state; swapping registries goes through WithSnapshot.
package identification
