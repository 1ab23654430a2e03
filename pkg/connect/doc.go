// Package connect detects and classifies physical contact between
// building elements. Given world-space triangulated solids it finds
// plausible candidate pairs, samples near-contact points with short
// axis-aligned probes, deduplicates the samples, and classifies each
// touching pair as a point, line, or surface connection with a scalar
// measurement (length in m, area in m²).
//
// The engine works on discretely sampled point sets and millimeter-
// scale heuristics suited to prefabricated timber joints. It is not a
// general collision engine and does not handle penetrating solids.
package connect
