// Package fileutil holds verified file copies used when restoring database
// snapshots.
package fileutil
