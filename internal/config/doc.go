// Package config loads, normalizes, and validates romimport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROMIMPORT_ENRICHMENT_API_KEY. The Config type centralizes every knob the
// import pipeline and CLI need, so library, staging and state directories,
// archive limits, and the metadata provider are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
