package model

import "fmt"

// SourceLocation points at the place in a markdown file a construct came from.
type SourceLocation struct {
	FilePath    string
	LineNumber  int
	SectionName string
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d (in %q)", l.FilePath, l.LineNumber, l.SectionName)
}
