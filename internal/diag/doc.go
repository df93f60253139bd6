// Package diag defines the diagnostic model shared by the generation passes.
//
// A Diagnostic names the type (and optionally the member) it concerns rather
// than a source position: the input is a metadata snapshot, so the fully
// qualified managed name is the only stable locator a user can act on.
//
// Producers emit through a Reporter. BagReporter stores into a Bag, which the
// driver keeps per type and merges in a deterministic order once a pass ends.
// Bags are not safe for concurrent use; each worker owns its own.
//
// Severity follows three levels. Errors are fatal for the owning type only;
// warnings and infos never stop generation.
package diag
