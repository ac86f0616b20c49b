// Package crawler contains the ingestion core: the canonical Restaurant and
// Review records, the error taxonomy, the capability interfaces implemented
// by fetchers, adapters and stores, and the Engine that drives one crawl
// batch over them.
package crawler
