// Package crimecensus builds a research dataset linking Seattle Police
// Department crime reports to census tract demographics.
//
// The pipeline downloads SPD report data from the Seattle open data
// portal, fetches ACS 5-year estimates for King County tracts from the
// Census Bureau API, spatially joins each crime to its tract using
// TIGER/Line boundaries, and exports the merged dataset as CSV or
// SQLite.
//
// The cmd/crimecensus command drives the full flow:
//
//	export CENSUS_API_KEY=...
//	crimecensus run --sqlite crime.db
//
// Supporting packages (dataset, preprocessing, metrics) provide the
// tabular tooling and evaluation metrics used by downstream analyses of
// the joined data.
package crimecensus
