// Package readmanga implements providers.Source for readmanga.live and its
// adult-content sibling seimanga.me. Extraction is driven by a Site table of
// selectors so layout variants of the same engine differ only in data.
package readmanga
