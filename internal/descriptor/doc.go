// Package descriptor implements the metadata trailer protocol that lets a
// packaged executable find its own payload.
//
// A compiled package is laid out as:
//
//	stub bytes
//	Separator ("\n" + "CAXA"x3 + "\n")
//	archive bytes (gzip-compressed tar)
//	"\n" + JSON(Descriptor)
//
// The stub does not know its own size at compile time, so the trailer is
// always the last line of the file: a reader scans backward from EOF to the
// last newline and parses everything after it. The leading "\n" written by
// WriteTrailer guarantees that newline exists even if the archive's last byte
// is not one. JSON encoding escapes newlines inside strings, so the trailer
// itself never contains one.
//
// Shell packages use a different strategy: the header script counts its own
// lines (see RenderSelfCounting) and skips them with tail(1).
package descriptor
