//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract builds the CLI and extracts rules from doc into exports/.
func Extract(doc string) error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath(), "extract", doc, "--out", "exports")
}

// Archive imports every export file in exports/ into the rule library.
func Archive() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath(), "library", "import", "exports")
}
