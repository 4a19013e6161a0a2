// Package catalog defines the uniform catalog entry shared by every asset
// category, the category enum itself, and the extension rules that map
// discovered files onto categories and coarse category tags.
//
// Storage lives in the registry package; this package stays free of I/O so
// ingestion workers and report builders can use it without a database.
package catalog
