package filesystem

import (
	"path/filepath"
	"regexp"
)

const (
	ConcernDir = "concerns"
	RelatedDir = "related"
	fileSuffix = ".yaml"
	tempPrefix = ".tmp-"
)

var idExp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// CheckId checks whether a concern id can be used as file name.
func CheckId(id string) bool {
	return idExp.MatchString(id)
}

func Path(table, id string) string {
	return filepath.Join(table, id+fileSuffix)
}
