// Package deps resolves the external binaries comicpdf launches.
package deps
