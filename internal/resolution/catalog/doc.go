// Package catalog looks up Mac App Store listings through the public iTunes
// Search API and accepts the first result whose name or seller matches the
// record.
package catalog
