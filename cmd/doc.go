// Package cmd defines and implements the CLI commands for the harvester executable.
//
// Architecture overview:
//   - Catalog: internal/catalog reads the listing JSON array. Entries without an ebay_url or id are logged and
//     skipped; a document that is not an array, or a missing file, fails the command.
//   - Fetch: one headless Chrome (internal/fetcher/headless) is started for the run and each listing gets a fresh
//     tab that is closed when the fetch returns. With browser.enabled=false a Colly fetcher does a plain GET instead.
//     internal/headless/detector turns challenge pages into BlockedError.
//   - Resolve: internal/resolver tries meta tags, then the hero image element, then the largest image on the page
//     and normalizes the winner to an absolute http(s) URL, upgrading eBay size tokens to s-l1600.
//   - Save: internal/download fetches the image with resty, the extension comes from its Content-Type, and
//     internal/storage writes <img-root>/<folder>/<id>.<ext> atomically (or to GCS). Rows optionally go to Postgres.
//   - Report: internal/report writes the summary array once the loop ends, including after an interrupt.
//
// Operational notes:
//   - Sequential by design; one listing is in flight at a time. SIGINT/SIGTERM stops the loop between listings.
//   - Per-listing failures never abort the run. They are logged with id and ebay_url and counted in
//     harvester_items_total{outcome}, which is pushed to a Pushgateway at the end when configured.
//   - Configure with a file (--config) or HARVESTER_* env vars, for example HARVESTER_BROWSER_ENABLED=false or
//     HARVESTER_STORAGE_OVERWRITE=false.
package cmd
