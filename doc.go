// ytcatalog periodically synchronizes a creator's video catalog from the
// YouTube Data API into MongoDB and enriches records with playlist-derived
// classification tags.
//
// The pipeline tolerates the API's daily quota budget, survives partial
// failures across scheduled runs via a persisted continuation token, and
// guards against overlapping runs with an advisory lock on a singleton
// run-state document.
//
// # Commands
//
// Serve the trigger endpoint for a push scheduler:
//
//	ytcatalog serve
//
// Run a single ingestion pass:
//
//	ytcatalog sync
//
// Inspect the run state:
//
//	ytcatalog status
//
// # Configuration
//
// Configuration is loaded from ytcatalog.json (current directory or
// ~/.config/ytcatalog/) and overridden by YTCATALOG_* environment variables.
// YTCATALOG_API_KEY and YTCATALOG_CHANNEL_ID are required for ingestion.
//
// # Packages
//
//   - config: configuration management
//   - quota: cost-weighted budget monitor for API operations
//   - youtube: quota-gated platform client
//   - ingest: the run coordinator, paginator, aggregator, and writer
//   - storage: persisted models and the MongoDB store
//   - server: the trigger HTTP surface
package main
