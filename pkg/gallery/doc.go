// Package gallery implements a small image gallery: each Upload pairs a title
// with the public URL of an image held in a blob store.
//
// The Service exposes three mutations that coordinate the blob store with the
// record repository:
//
//	CreateUpload  validate -> put blob -> create record
//	UpdateUpload  validate -> load record -> (delete old blob -> put new blob) -> update record
//	DeleteUpload  load record -> delete blob -> delete record
//
// No transaction spans the two stores. A failure after the blob step leaves
// an orphaned blob or a record pointing at a missing blob; these windows are
// logged at WARN and reported through the returned Result rather than
// compensated.
//
// Successful mutations publish a ListingChanged event to the configured
// EventSink so cached listing views can be dropped.
package gallery
