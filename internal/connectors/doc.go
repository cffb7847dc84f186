// Package connectors holds the directory sources a run can pull from.
//
// Each source package (graph, google, github) implements driven.PageSource:
// it fetches one page for a continuation token, classifies provider errors
// into the domain source taxonomy and maps provider items onto Records.
// The pager package applies the retry and throttling policy on top of a
// PageSource, and the factory package builds the configured source for a
// run with a freshly acquired token.
package connectors
