// Package textutil cleans caller-supplied strings before they become parts
// of remote object paths.
package textutil
