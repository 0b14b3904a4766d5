// Package datfile reads Logiqx XML DAT files (No-Intro, Redump and friends)
// and indexes their ROM entries by digest.
//
// The resulting Index is the reference digest table used by identification:
// a digest hit names the system authoritatively. The same entries provide
// offline titles and regions when the metadata provider is unavailable.
package datfile
