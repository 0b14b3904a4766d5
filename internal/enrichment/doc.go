// Package enrichment looks up descriptive metadata and artwork for imported
// titles.
//
// Providers answer by content digest or by system and title. HTTPClient talks
// to the JSON metadata service with retries for transient failures,
// DatProvider answers offline from loaded DAT files, and Chain tries several
// providers in order. Service bounds every lookup with a timeout, collapses
// identical concurrent lookups, and caches answers per key. Enrichment is
// best effort: callers record a failed lookup and carry on.
package enrichment
