// Package extract implements the run-time cache protocol of a packaged
// executable: find or create the application directory for an identifier,
// extracting the payload at most once per attempt slot.
//
// Cache layout under Layout.Root:
//
//	applications/{identifier}/{attempt}/   extracted application tree
//	locks/{identifier}/{attempt}/          present while an extraction runs
//	locks/{identifier}/{attempt}/payload/  staging area, renamed into place
//
// # Locking
//
// os.Mkdir on the lock directory is the mutual-exclusion primitive: it is
// atomic and fails if the directory exists, on every platform. Advisory file
// locks are not used.
//
// A process that loses the race for an attempt number does not wait. It moves
// on to the next attempt number, so a crashed extractor only ever blocks its
// own slot. The cost is that heavy contention can produce redundant
// extractions under different attempt numbers.
//
// A lock left behind by a failed or killed extraction is never reclaimed.
// Reclaiming it safely would need a staleness rule that cannot race with a
// slow but live extractor.
package extract
