// Package domain models canonical disaster events aggregated from
// heterogeneous monitoring sources.
//
// # Data Sources
//
// Records arrive from three source families, each independently unreliable:
//
//   - Structured APIs: USGS earthquake GeoJSON feeds, the ReliefWeb disaster
//     database, and GDACS alert feeds. These report coordinates and magnitudes
//     directly and carry the highest reliability weight.
//   - Syndicated news: RSS/Atom feeds from configured outlets, filtered through
//     a disaster-context keyword gate before entering the pipeline.
//   - AI search: an optional OpenAI-compatible collaborator that returns draft
//     records from free-text analysis. Lowest reliability weight, never a hard
//     dependency.
//
// Every source mention is a [RawRecord], owned by the pipeline run that fetched
// it. Raw records are normalized, geocoded, and classified into a [Candidate],
// then clustered across sources; each cluster folds into one persisted
// [DisasterEvent]. Raw records are discarded after the fold.
//
// # ID Generation
//
// Event IDs are deterministic SHA-256 hashes of the merge key: normalized
// title tokens, coordinates rounded to one decimal (~11 km), and the time
// bucket. Reprocessing the same inputs reproduces the same ID, which makes
// cache upserts idempotent and snapshot replay safe. Merges update event
// content but never the ID. See [EventID].
//
// # Severity
//
// The four-level ordinal scale (LOW < MEDIUM < HIGH < CRITICAL) follows the
// conventions of the upstream alert systems: GDACS green/orange/red levels and
// USGS magnitude bands (M >= 6 maps to at least HIGH, M >= 7 to CRITICAL).
//
// # Lifecycle
//
// An event is NEW when first committed, ACTIVE once corroborated or carried
// past its first sweep, STALE after the staleness window passes without a
// corroborating record, and ARCHIVED after an extended silence window.
// Archived events leave default query results but remain retrievable. Only the
// cache store applies transitions.
package domain
